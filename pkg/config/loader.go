// Package config loads service configuration from struct-tag defaults, an
// optional YAML or JSON file, an optional dotenv file, and the process
// environment. Later layers win:
//
//	envDefault struct tags
//	YAML/JSON file             (WithFile)
//	dotenv file                (WithDotEnv)
//	process environment
//
// A dotenv file only supplies variables the process environment does not
// already define, so a deployed secret is never shadowed by a stale local
// file.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable
//   - `envDefault:"value"` sets a default when the field is zero-valued
//   - `required:"true"` fails validation if the field remains zero
//
// File loading goes through the yaml/json unmarshalers, so fields also
// need `yaml` or `json` tags.
//
// # Usage
//
//	type BFFConfig struct {
//	    Addr    string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Issuer  string        `env:"ISSUER" yaml:"issuer" required:"true"`
//	    Timeout time.Duration `env:"JWKS_TIMEOUT" envDefault:"5s" yaml:"jwks_timeout"`
//	}
//
//	cfg := config.MustLoad[BFFConfig](
//	    config.New().WithEnvPrefix("BFF").WithFile("bff.yaml").WithDotEnv(".env"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sserr "github.com/tallerpinturas/tallerpinturas-core/pkg/errors"
)

// time.Duration has Kind() == Int64 and needs its own parser.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration in layers. Build one with [New], configure
// it with the With* methods, then call [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix  string
	filePath   string
	dotEnvPath string
}

// New returns a Loader that reads the process environment only.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends prefix and an underscore to every variable name
// derived from an `env` tag. WithEnvPrefix("BFF") makes `env:"ISSUER"`
// read BFF_ISSUER. The prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a YAML (.yaml, .yml) or JSON (.json) file to read. A
// missing file is skipped. Paths containing ".." are rejected.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithDotEnv sets a dotenv file whose variables fill in for any the
// process environment lacks. A missing file is skipped.
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotEnvPath = path
	return l
}

// Load fills cfg, which must be a non-nil pointer to a struct, and then
// validates it: `required:"true"` fields must be non-zero, and a cfg that
// implements [Validator] has its Validate method called.
//
// Loading failures carry [sserr.CodeInternalConfiguration]; validation
// failures carry [sserr.CodeValidationRequired] or [sserr.CodeValidation].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	lookup := os.LookupEnv
	if l.dotEnvPath != "" {
		dotenv, err := l.readDotEnv()
		if err != nil {
			return err
		}
		lookup = func(key string) (string, bool) {
			if v, ok := os.LookupEnv(key); ok {
				return v, true
			}
			v, ok := dotenv[key]
			return v, ok
		}
	}

	if err := applyEnv(rv, l.envPrefix, lookup); err != nil {
		return err
	}

	return validate(cfg, rv)
}

// MustLoad loads a T with loader and panics on failure. Use it in main,
// where a bad configuration should stop the process.
//
//	cfg := config.MustLoad[BFFConfig](config.New().WithEnvPrefix("BFF"))
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

func (l *Loader) readDotEnv() (map[string]string, error) {
	if strings.Contains(l.dotEnvPath, "..") {
		return nil, sserr.New(sserr.CodeInternalConfiguration,
			"config: dotenv path must not contain directory traversal (..) sequences")
	}
	vars, err := godotenv.Read(l.dotEnvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read dotenv file %q", l.dotEnvPath)
	}
	return vars, nil
}

// applyDefaults sets zero-valued fields from their envDefault tags,
// recursing into nested structs.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

// applyEnv sets fields from the variables named by their env tags. A
// nested struct's env tag extends the prefix of its children:
// `env:"JWKS"` on the parent and `env:"URL"` on the child reads
// <PREFIX>_JWKS_URL.
func applyEnv(rv reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyEnv(field, joinEnv(prefix, envTag), lookup); err != nil {
				return err
			}
			continue
		}
		if envTag == "" {
			continue
		}

		envKey := joinEnv(prefix, envTag)
		val, ok := lookup(envKey)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, envKey)
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	default:
		return prefix + "_" + name
	}
}

// setField parses value into field. Supported kinds: string (and named
// string types), bool, signed integers, float64, time.Duration, and
// []string (comma-separated, trimmed, empty items dropped).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse float %q: %w", value, err)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		var parts []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		// MakeSlice keeps named slice types (type Audiences []string) settable.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(p)
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
