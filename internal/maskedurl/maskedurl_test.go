package maskedurl

import "testing"

func TestBuild(t *testing.T) {
	tests := []struct {
		name      string
		root      string
		channelID string
		fileID    string
		want      string
	}{
		{
			name:      "default root",
			channelID: "42",
			fileID:    "file123",
			want:      "https://bubby.app/v1/c/42/f/file123/masked",
		},
		{
			name:      "custom root with trailing slash",
			root:      "https://example.com/",
			channelID: "42",
			fileID:    "file123",
			want:      "https://example.com/v1/c/42/f/file123/masked",
		},
		{
			name:      "escapes path characters",
			channelID: "a/b",
			fileID:    "f 1",
			want:      "https://bubby.app/v1/c/a%2Fb/f/f%201/masked",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Build(tt.root, tt.channelID, tt.fileID); got != tt.want {
				t.Fatalf("Build() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name      string
		masked    string
		channelID string
		wantID    string
		wantOK    bool
	}{
		{
			name:      "round trip",
			masked:    Build("", "42", "file123"),
			channelID: "42",
			wantID:    "file123",
			wantOK:    true,
		},
		{
			name:      "wrong channel",
			masked:    Build("", "42", "file123"),
			channelID: "43",
		},
		{
			name:      "not a masked url",
			masked:    "https://files.example/file123.jpg",
			channelID: "42",
		},
		{
			name:      "missing suffix",
			masked:    "https://bubby.app/v1/c/42/f/file123",
			channelID: "42",
		},
		{
			name:      "escaped file id",
			masked:    Build("", "42", "f 1"),
			channelID: "42",
			wantID:    "f 1",
			wantOK:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotOK := Extract(tt.masked, tt.channelID)
			if gotOK != tt.wantOK || gotID != tt.wantID {
				t.Fatalf("Extract() = %q, %v, want %q, %v", gotID, gotOK, tt.wantID, tt.wantOK)
			}
		})
	}
}
