package chat_test

import (
	"testing"

	"github.com/omochice/chat-relay/internal/chat"
)

func TestStaticCredentials_Lookup(t *testing.T) {
	creds := chat.StaticCredentials{"alice": "hunter2"}

	secret, ok := creds.Lookup("alice")
	if !ok || secret != "hunter2" {
		t.Errorf("Lookup(alice) = (%q, %v), want (hunter2, true)", secret, ok)
	}

	if _, ok := creds.Lookup("ghost"); ok {
		t.Error("Lookup(ghost) = true, want false")
	}
}

func TestParseCredentials(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    chat.StaticCredentials
		wantErr bool
	}{
		{
			name:  "single pair",
			input: "alice:hunter2",
			want:  chat.StaticCredentials{"alice": "hunter2"},
		},
		{
			name:  "multiple pairs",
			input: "alice:hunter2,rabbit:carrot",
			want:  chat.StaticCredentials{"alice": "hunter2", "rabbit": "carrot"},
		},
		{
			name:  "whitespace and empty entries",
			input: " alice:hunter2 , ,rabbit:carrot,",
			want:  chat.StaticCredentials{"alice": "hunter2", "rabbit": "carrot"},
		},
		{
			name:  "empty password allowed",
			input: "alice:",
			want:  chat.StaticCredentials{"alice": ""},
		},
		{
			name:    "missing separator",
			input:   "alice",
			wantErr: true,
		},
		{
			name:    "empty user",
			input:   ":hunter2",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chat.ParseCredentials(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCredentials(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseCredentials(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for user, pass := range tt.want {
				if got[user] != pass {
					t.Errorf("creds[%q] = %q, want %q", user, got[user], pass)
				}
			}
		})
	}
}
