// Package settings gives typed access to a site's options and implements
// import, export, and reset.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/options"
)

var (
	// ErrUnknownKey is returned by Update for keys outside the allow-list.
	ErrUnknownKey = errors.New("unknown settings key")
	// ErrInvalidValue is returned by Update when a value has the wrong type.
	ErrInvalidValue = errors.New("invalid settings value")
)

// Service reads and writes the recognised option keys of one site. List keys
// live in the lists namespace chosen by the storage scope; every other key
// lives in the site namespace.
type Service struct {
	site   options.Store
	lists  options.Store
	logger logpkg.Logger
}

// New builds a Service. lists may be the same Store as site.
func New(site, lists options.Store, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	return &Service{site: site, lists: lists, logger: logger}
}

func (s *Service) storeFor(key string) options.Store {
	if domain.IsListKey(key) {
		return s.lists
	}
	return s.site
}

// raw returns the stored bytes of key, or nil when unset.
func (s *Service) raw(ctx context.Context, key string) ([]byte, error) {
	st := s.storeFor(key)
	v, ok, err := st.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", st.Namespace(), key, err)
	}
	if !ok || len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, nil
	}
	return v, nil
}

// Bool returns a boolean option, falling back to its default.
func (s *Service) Bool(ctx context.Context, key string) (bool, error) {
	def, _ := domain.DefaultValue(key)
	defBool, _ := def.(bool)
	raw, err := s.raw(ctx, key)
	if err != nil || raw == nil {
		return defBool, err
	}
	v, ok := decodeBool(raw)
	if !ok {
		s.warnDecode(key, raw)
		return defBool, nil
	}
	return v, nil
}

// String returns a string option, falling back to its default. An empty
// stored string also falls back.
func (s *Service) String(ctx context.Context, key string) (string, error) {
	def, _ := domain.DefaultValue(key)
	defStr, _ := def.(string)
	raw, err := s.raw(ctx, key)
	if err != nil || raw == nil {
		return defStr, err
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		s.warnDecode(key, raw)
		return defStr, nil
	}
	if strings.TrimSpace(v) == "" {
		return defStr, nil
	}
	return v, nil
}

// Int returns an integer option, falling back to its default.
func (s *Service) Int(ctx context.Context, key string) (int, error) {
	def, _ := domain.DefaultValue(key)
	defInt, _ := def.(int)
	raw, err := s.raw(ctx, key)
	if err != nil || raw == nil {
		return defInt, err
	}
	v, ok := decodeInt(raw)
	if !ok {
		s.warnDecode(key, raw)
		return defInt, nil
	}
	return v, nil
}

// Strings returns a list option, falling back to an empty list. Values are
// trimmed and empties dropped.
func (s *Service) Strings(ctx context.Context, key string) ([]string, error) {
	raw, err := s.raw(ctx, key)
	if err != nil || raw == nil {
		return []string{}, err
	}
	v, ok := utils.DecodeList(raw)
	if !ok {
		s.warnDecode(key, raw)
		return []string{}, nil
	}
	return v, nil
}

// Load returns every recognised option as a typed Settings value.
func (s *Service) Load(ctx context.Context) (domain.Settings, error) {
	var (
		out domain.Settings
		err error
	)
	bools := []struct {
		key string
		dst *bool
	}{
		{domain.KeyEnableRegistration, &out.EnableRegistration},
		{domain.KeyEnableWooCommerce, &out.EnableWooCommerce},
		{domain.KeyEnableCF7, &out.EnableCF7},
		{domain.KeyEnableWPForms, &out.EnableWPForms},
		{domain.KeyEnableFluentForms, &out.EnableFluentForms},
		{domain.KeyNotifyAdmin, &out.NotifyAdmin},
		{domain.KeyEnableAutoUpdate, &out.EnableAutoUpdate},
	}
	for _, b := range bools {
		if *b.dst, err = s.Bool(ctx, b.key); err != nil {
			return out, err
		}
	}
	lists := []struct {
		key string
		dst *[]string
	}{
		{domain.KeyRoleBypass, &out.RoleBypass},
		{domain.KeyAdminBlocklist, &out.AdminBlocklist},
		{domain.KeyWhitelist, &out.Whitelist},
	}
	for _, l := range lists {
		if *l.dst, err = s.Strings(ctx, l.key); err != nil {
			return out, err
		}
	}
	if out.ErrorMessage, err = s.String(ctx, domain.KeyErrorMessage); err != nil {
		return out, err
	}
	if out.LogRetentionDays, err = s.Int(ctx, domain.KeyLogRetentionDays); err != nil {
		return out, err
	}
	return out, nil
}

// Export snapshots every recognised key. Stored values are returned
// verbatim; unset keys carry their default.
func (s *Service) Export(ctx context.Context) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(domain.ExportableKeys()))
	for _, key := range domain.ExportableKeys() {
		raw, err := s.raw(ctx, key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			def, _ := domain.DefaultValue(key)
			if raw, err = json.Marshal(def); err != nil {
				return nil, fmt.Errorf("encode default %s: %w", key, err)
			}
		}
		out[key] = json.RawMessage(raw)
	}
	return out, nil
}

// Import applies a JSON object of settings. Only recognised keys are
// written, verbatim; unknown keys and null values are ignored. A payload
// that is not a JSON object returns domain.ErrMalformedImport and changes
// nothing. It returns the keys that were written.
func (s *Service) Import(ctx context.Context, payload []byte) ([]string, error) {
	var record map[string]json.RawMessage
	if err := json.Unmarshal(payload, &record); err != nil || record == nil {
		return nil, domain.ErrMalformedImport
	}

	applied := make([]string, 0, len(record))
	for _, key := range domain.ExportableKeys() {
		v, ok := record[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		st := s.storeFor(key)
		if err := st.Set(ctx, key, []byte(v)); err != nil {
			return applied, fmt.Errorf("import %s/%s: %w", st.Namespace(), key, err)
		}
		applied = append(applied, key)
	}
	ignored := len(record) - len(applied)
	s.logger.Info(map[string]any{"applied": len(applied), "ignored": ignored}, "settings imported")
	return applied, nil
}

// Update writes one recognised key after checking the value decodes as the
// key's type.
func (s *Service) Update(ctx context.Context, key string, value json.RawMessage) error {
	def, ok := domain.DefaultValue(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	var valid bool
	switch def.(type) {
	case bool:
		_, valid = decodeBool(value)
	case int:
		_, valid = decodeInt(value)
	case string:
		var str string
		valid = json.Unmarshal(value, &str) == nil
	case []string:
		_, valid = utils.DecodeList(value)
	}
	if !valid {
		return fmt.Errorf("%w: %q", ErrInvalidValue, key)
	}
	st := s.storeFor(key)
	if err := st.Set(ctx, key, []byte(value)); err != nil {
		return fmt.Errorf("update %s/%s: %w", st.Namespace(), key, err)
	}
	return nil
}

// Reset overwrites every recognised key with its default, including the
// admin blocklist and whitelist.
func (s *Service) Reset(ctx context.Context) error {
	for _, key := range domain.ExportableKeys() {
		def, _ := domain.DefaultValue(key)
		if err := options.SetValue(ctx, s.storeFor(key), key, def); err != nil {
			return err
		}
	}
	s.logger.Info(nil, "settings reset to defaults")
	return nil
}

func (s *Service) warnDecode(key string, raw []byte) {
	s.logger.Warn(map[string]any{"key": key, "namespace": s.storeFor(key).Namespace(), "raw": string(raw)}, "stored option has unexpected type, using default")
}

// decodeBool accepts JSON booleans and the 0/1 and "true"/"false" forms
// older exports contain.
func decodeBool(raw []byte) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		f, err := n.Float64()
		return f != 0, err == nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "on":
			return true, true
		case "", "0", "false", "no", "off":
			return false, true
		}
	}
	return false, false
}

// decodeInt accepts JSON numbers and numeric strings.
func decodeInt(raw []byte) (int, bool) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		i, err := strconv.Atoi(strings.TrimSpace(s))
		return i, err == nil
	}
	return 0, false
}

