package cmd

import "testing"

func TestParseKeyValueFlags(t *testing.T) {
	tests := []struct {
		name     string
		entries  []string
		expected map[string]string
		wantErr  bool
	}{
		{
			name:     "empty",
			entries:  []string{},
			expected: map[string]string{},
		},
		{
			name:     "single pair",
			entries:  []string{"name=Ada"},
			expected: map[string]string{"name": "Ada"},
		},
		{
			name:     "multiple pairs",
			entries:  []string{"key1=value1", "key2=value2"},
			expected: map[string]string{"key1": "value1", "key2": "value2"},
		},
		{
			name:     "value with equals sign",
			entries:  []string{"query=SELECT * FROM users WHERE id=1"},
			expected: map[string]string{"query": "SELECT * FROM users WHERE id=1"},
		},
		{
			name:     "empty value",
			entries:  []string{"empty="},
			expected: map[string]string{"empty": ""},
		},
		{
			name:    "missing equals",
			entries: []string{"invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValueFlags("context", tt.entries)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseKeyValueFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("parseKeyValueFlags() = %v, want %v", got, tt.expected)
			}
			for k, v := range tt.expected {
				if got[k] != v {
					t.Errorf("parseKeyValueFlags()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
