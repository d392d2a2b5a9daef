package bundle

import (
	"encoding/json"
	"testing"
)

func TestDetectRuleUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    DetectKind
		wantErr bool
	}{
		{
			name:  "none as string",
			input: `"none"`,
			want:  DetectNone,
		},
		{
			name:  "file exists",
			input: `{"file_exists": {"path": "C:\\test.txt"}}`,
			want:  DetectFileExists,
		},
		{
			name: "registry value",
			input: `{"registry_value": {
				"hive": "hklm",
				"key": "SOFTWARE\\Microsoft\\NET Framework Setup\\NDP\\v4\\Full",
				"value_name": "Release",
				"kind": "dword",
				"expected": {"dword_at_least": 528040}
			}}`,
			want: DetectRegistryValue,
		},
		{
			name:    "unknown string tag",
			input:   `"always"`,
			wantErr: true,
		},
		{
			name:    "unknown object tag",
			input:   `{"glob_match": {"path": "x"}}`,
			wantErr: true,
		},
		{
			name:    "two variants at once",
			input:   `{"file_exists": {"path": "a"}, "registry_value": {}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rule DetectRule
			err := json.Unmarshal([]byte(tt.input), &rule)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got rule %+v", rule)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rule.Kind != tt.want {
				t.Fatalf("kind = %q, want %q", rule.Kind, tt.want)
			}
		})
	}
}

func TestDetectRuleFieldsSurvive(t *testing.T) {
	var rule DetectRule
	input := `{"file_exists": {"path": "C:\\test.txt"}}`
	if err := json.Unmarshal([]byte(input), &rule); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rule.File == nil || rule.File.Path != `C:\test.txt` {
		t.Fatalf("file rule = %+v", rule.File)
	}

	out, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back DetectRule
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-unmarshal %s: %v", out, err)
	}
	if back.File.Path != rule.File.Path {
		t.Fatalf("round trip lost path: %s", out)
	}
}

func TestZeroDetectRuleIsNone(t *testing.T) {
	var rule DetectRule
	if !rule.IsNone() {
		t.Fatal("zero rule should behave as none")
	}
	out, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("marshal zero rule: %v", err)
	}
	if string(out) != `"none"` {
		t.Fatalf("zero rule marshals as %s", out)
	}
}

func TestRegistryExpectedUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    RegistryExpected
		wantErr bool
	}{
		{
			name:  "dword at least",
			input: `{"dword_at_least": 528040}`,
			want:  RegistryExpected{Op: CompareDwordAtLeast, Dword: 528040},
		},
		{
			name:  "dword equals",
			input: `{"dword_equals": 1}`,
			want:  RegistryExpected{Op: CompareDwordEquals, Dword: 1},
		},
		{
			name:  "string equals",
			input: `{"sz_equals": "2.0.1"}`,
			want:  RegistryExpected{Op: CompareSzEquals, Sz: "2.0.1"},
		},
		{
			name:    "unknown comparison",
			input:   `{"dword_at_most": 3}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e RegistryExpected
			err := json.Unmarshal([]byte(tt.input), &e)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", e)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e != tt.want {
				t.Fatalf("got %+v, want %+v", e, tt.want)
			}
		})
	}
}

func TestRegistryExpectedMatches(t *testing.T) {
	tests := []struct {
		name     string
		expected RegistryExpected
		kind     RegistryValueKind
		dword    uint32
		sz       string
		want     bool
	}{
		{
			name:     "dword_at_least equal to threshold",
			expected: RegistryExpected{Op: CompareDwordAtLeast, Dword: 528040},
			kind:     RegDword,
			dword:    528040,
			want:     true,
		},
		{
			name:     "dword_at_least one below threshold",
			expected: RegistryExpected{Op: CompareDwordAtLeast, Dword: 528040},
			kind:     RegDword,
			dword:    528039,
			want:     false,
		},
		{
			name:     "dword_equals match",
			expected: RegistryExpected{Op: CompareDwordEquals, Dword: 1},
			kind:     RegDword,
			dword:    1,
			want:     true,
		},
		{
			name:     "sz_equals match",
			expected: RegistryExpected{Op: CompareSzEquals, Sz: "abc"},
			kind:     RegSz,
			sz:       "abc",
			want:     true,
		},
		{
			name:     "dword expectation against string value",
			expected: RegistryExpected{Op: CompareDwordAtLeast, Dword: 1},
			kind:     RegSz,
			sz:       "1",
			want:     false,
		},
		{
			name:     "string expectation against dword value",
			expected: RegistryExpected{Op: CompareSzEquals, Sz: "1"},
			kind:     RegDword,
			dword:    1,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.expected.Matches(tt.kind, tt.dword, tt.sz)
			if got != tt.want {
				t.Fatalf("Matches = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestHealthcheckUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    HealthcheckKind
		wantErr bool
	}{
		{name: "process", input: `"process"`, want: HealthcheckProcess},
		{name: "pipe", input: `{"pipe": {"name": "svc-pipe"}}`, want: HealthcheckPipe},
		{name: "http", input: `{"http": {"url": "http://127.0.0.1:8420/health"}}`, want: HealthcheckHTTP},
		{name: "unknown string", input: `"tcp"`, wantErr: true},
		{name: "unknown object", input: `{"grpc": {"addr": "x"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Healthcheck
			err := json.Unmarshal([]byte(tt.input), &h)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", h)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h.Kind != tt.want {
				t.Fatalf("kind = %q, want %q", h.Kind, tt.want)
			}
		})
	}
}
