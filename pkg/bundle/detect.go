package bundle

import (
	"encoding/json"
	"fmt"
)

// DetectKind discriminates the detection rule variants.
type DetectKind string

const (
	// DetectNone never matches: the module is always treated as not yet
	// installed, so its install step always runs. Intentional for modules
	// with no reliable detection signal whose steps are re-apply safe.
	DetectNone DetectKind = "none"
	// DetectRegistryValue compares a registry value against an expectation.
	DetectRegistryValue DetectKind = "registry_value"
	// DetectFileExists checks a path for existence.
	DetectFileExists DetectKind = "file_exists"
)

// DetectRule decides whether a module or prerequisite is already present.
// Exactly one variant is populated according to Kind. The zero value
// behaves as DetectNone (a manifest may omit the field entirely).
//
// Wire forms:
//
//	"none"
//	{"registry_value": {...}}
//	{"file_exists": {"path": "..."}}
type DetectRule struct {
	Kind     DetectKind
	Registry *RegistryValueRule
	File     *FileExistsRule
}

// IsNone reports whether the rule is the always-not-installed variant,
// including the zero value.
func (r DetectRule) IsNone() bool {
	return r.Kind == "" || r.Kind == DetectNone
}

func (r *DetectRule) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if DetectKind(tag) != DetectNone {
			return fmt.Errorf("unknown detect rule %q", tag)
		}
		*r = DetectRule{Kind: DetectNone}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("detect rule must be \"none\" or a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("detect rule must have exactly one variant, got %d", len(obj))
	}
	for key, raw := range obj {
		switch DetectKind(key) {
		case DetectRegistryValue:
			var rule RegistryValueRule
			if err := json.Unmarshal(raw, &rule); err != nil {
				return fmt.Errorf("parse registry_value rule: %w", err)
			}
			*r = DetectRule{Kind: DetectRegistryValue, Registry: &rule}
		case DetectFileExists:
			var rule FileExistsRule
			if err := json.Unmarshal(raw, &rule); err != nil {
				return fmt.Errorf("parse file_exists rule: %w", err)
			}
			*r = DetectRule{Kind: DetectFileExists, File: &rule}
		default:
			return fmt.Errorf("unknown detect rule %q", key)
		}
	}
	return nil
}

func (r DetectRule) MarshalJSON() ([]byte, error) {
	switch {
	case r.IsNone():
		return json.Marshal(string(DetectNone))
	case r.Kind == DetectRegistryValue:
		return json.Marshal(map[string]*RegistryValueRule{string(DetectRegistryValue): r.Registry})
	case r.Kind == DetectFileExists:
		return json.Marshal(map[string]*FileExistsRule{string(DetectFileExists): r.File})
	}
	return nil, fmt.Errorf("unknown detect rule %q", r.Kind)
}

// FileExistsRule matches when the path exists. A relative path resolves
// against the manifest's containing directory.
type FileExistsRule struct {
	Path string `json:"path"`
}

// RegistryValueRule reads one registry value and compares it against the
// expectation.
type RegistryValueRule struct {
	Hive      RegistryHive      `json:"hive"`
	Key       string            `json:"key"`
	ValueName string            `json:"value_name"`
	Kind      RegistryValueKind `json:"kind"`
	Expected  RegistryExpected  `json:"expected"`
}

// RegistryHive is the registry root key.
type RegistryHive string

const (
	HiveHKLM RegistryHive = "hklm"
	HiveHKCU RegistryHive = "hkcu"
)

func (h *RegistryHive) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch RegistryHive(s) {
	case HiveHKLM, HiveHKCU:
		*h = RegistryHive(s)
		return nil
	}
	return fmt.Errorf("unknown registry hive %q", s)
}

// RegistryValueKind is the declared type the value is read as.
type RegistryValueKind string

const (
	RegDword RegistryValueKind = "dword"
	RegSz    RegistryValueKind = "sz"
)

func (k *RegistryValueKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch RegistryValueKind(s) {
	case RegDword, RegSz:
		*k = RegistryValueKind(s)
		return nil
	}
	return fmt.Errorf("unknown registry value kind %q", s)
}

// RegistryCompareOp discriminates the expected-value variants.
type RegistryCompareOp string

const (
	CompareDwordAtLeast RegistryCompareOp = "dword_at_least"
	CompareDwordEquals  RegistryCompareOp = "dword_equals"
	CompareSzEquals     RegistryCompareOp = "sz_equals"
)

// RegistryExpected is the comparison applied to the value that was read.
//
// Wire forms:
//
//	{"dword_at_least": 528040}
//	{"dword_equals": 1}
//	{"sz_equals": "..."}
type RegistryExpected struct {
	Op    RegistryCompareOp
	Dword uint32
	Sz    string
}

func (e *RegistryExpected) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("expected value must be a single-key object: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("expected value must have exactly one variant, got %d", len(obj))
	}
	for key, raw := range obj {
		switch RegistryCompareOp(key) {
		case CompareDwordAtLeast, CompareDwordEquals:
			var n uint32
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*e = RegistryExpected{Op: RegistryCompareOp(key), Dword: n}
		case CompareSzEquals:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*e = RegistryExpected{Op: CompareSzEquals, Sz: s}
		default:
			return fmt.Errorf("unknown expected value %q", key)
		}
	}
	return nil
}

func (e RegistryExpected) MarshalJSON() ([]byte, error) {
	switch e.Op {
	case CompareDwordAtLeast, CompareDwordEquals:
		return json.Marshal(map[string]uint32{string(e.Op): e.Dword})
	case CompareSzEquals:
		return json.Marshal(map[string]string{string(e.Op): e.Sz})
	}
	return nil, fmt.Errorf("unknown expected value %q", e.Op)
}

// Matches reports whether a value read as the declared kind satisfies the
// expectation. A dword expectation against a string value (or vice versa)
// is simply not satisfied, never an error.
func (e RegistryExpected) Matches(kind RegistryValueKind, dword uint32, sz string) bool {
	switch kind {
	case RegDword:
		switch e.Op {
		case CompareDwordAtLeast:
			return dword >= e.Dword
		case CompareDwordEquals:
			return dword == e.Dword
		}
		return false
	case RegSz:
		return e.Op == CompareSzEquals && sz == e.Sz
	}
	return false
}
