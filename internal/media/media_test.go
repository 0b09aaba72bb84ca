package media

import "testing"

func TestExtension(t *testing.T) {
	cases := []struct {
		file File
		want string
	}{
		{File{ContentType: "audio/wav"}, ".wav"},
		{File{ContentType: "audio/webm;codecs=opus"}, ".webm"},
		{File{ContentType: "IMAGE/JPEG"}, ".jpg"},
		{File{Name: "site.HEIC", ContentType: "application/octet-stream"}, ".heic"},
		{File{}, ""},
	}
	for _, c := range cases {
		if got := c.file.Extension(); got != c.want {
			t.Errorf("Extension(%+v): expected %q, got %q", c.file, c.want, got)
		}
	}
}

func TestFileName(t *testing.T) {
	if got := (File{Name: "dir/clip.m4a"}).FileName("audio"); got != "clip.m4a" {
		t.Errorf("expected 'clip.m4a', got %q", got)
	}
	if got := (File{ContentType: "audio/ogg"}).FileName("audio"); got != "audio.ogg" {
		t.Errorf("expected 'audio.ogg', got %q", got)
	}
	if !(File{}).Empty() {
		t.Error("expected empty file")
	}
}
