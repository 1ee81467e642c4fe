package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/igorrodygin/museum-quiz-bot/consts"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "paintings.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dataset file: %s", err)
	}
	return path
}

func TestLoadPaintings(t *testing.T) {
	path := writeDataset(t, `[
		{
			"title": "  Девятый вал  ",
			"artist": " Иван Айвазовский ",
			"year": " 1850 ",
			"museum": " Русский музей ",
			"image_url": " https://example.com/wave.jpg ",
			"note": " примечание ",
			"source": " https://example.com "
		},
		{
			"title": "Без музея",
			"artist": "Никто",
			"year": "1900",
			"museum": "Лувр",
			"image_url": "https://example.com/no.jpg",
			"note": "",
			"source": ""
		},
		{
			"title": "Без картинки",
			"artist": "Никто",
			"year": "1900",
			"museum": "Третьяковская галерея",
			"image_url": "   ",
			"note": "",
			"source": ""
		}
	]`)

	paintings, err := LoadPaintings(path)
	if err != nil {
		t.Fatalf("failed to load paintings: %s", err)
	}

	if len(paintings) != 1 {
		t.Fatalf("number of loaded paintings = %d, want 1", len(paintings))
	}

	got := paintings[0]
	want := Painting{
		Title:    "Девятый вал",
		Artist:   "Иван Айвазовский",
		Year:     "1850",
		Museum:   consts.MuseumRussian,
		ImageURL: "https://example.com/wave.jpg",
		Note:     "примечание",
		Source:   "https://example.com",
	}
	if got != want {
		t.Errorf("loaded painting = %+v, want %+v", got, want)
	}
}

func TestLoadPaintingsErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadPaintings(filepath.Join(t.TempDir(), "nonexistent.json")); err == nil {
			t.Errorf("expected an error for a missing file")
		}
	})

	t.Run("broken json", func(t *testing.T) {
		path := writeDataset(t, `[{"title": `)
		if _, err := LoadPaintings(path); err == nil {
			t.Errorf("expected an error for broken json")
		}
	})

	t.Run("no playable paintings", func(t *testing.T) {
		path := writeDataset(t, `[
			{"title": "a", "artist": "b", "year": "1900", "museum": "Эрмитаж", "image_url": "https://example.com/a.jpg", "note": "", "source": ""},
			{"title": "c", "artist": "d", "year": "1901", "museum": "Русский музей", "image_url": "", "note": "", "source": ""}
		]`)
		if _, err := LoadPaintings(path); err == nil {
			t.Errorf("expected an error when nothing is playable")
		}
	})

	t.Run("empty array", func(t *testing.T) {
		path := writeDataset(t, `[]`)
		if _, err := LoadPaintings(path); err == nil {
			t.Errorf("expected an error for an empty dataset")
		}
	})
}

func TestIsValidMuseum(t *testing.T) {
	for _, museum := range []string{consts.MuseumRussian, consts.MuseumTretyakov} {
		if !isValidMuseum(museum) {
			t.Errorf("isValidMuseum(%q) = false, want true", museum)
		}
	}

	for _, museum := range []string{"", "Эрмитаж", "русский музей", "Tretyakov Gallery"} {
		if isValidMuseum(museum) {
			t.Errorf("isValidMuseum(%q) = true, want false", museum)
		}
	}
}

func TestQuestionCaption(t *testing.T) {
	caption := questionCaption(Painting{
		Title:  "Утро <в> лесу",
		Artist: "Шишкин & Савицкий",
		Year:   "1889",
	})

	if !strings.Contains(caption, "<b>Утро &lt;в&gt; лесу</b>") {
		t.Errorf("caption does not escape the title: %s", caption)
	}
	if !strings.Contains(caption, "Шишкин &amp; Савицкий, 1889") {
		t.Errorf("caption does not contain artist and year: %s", caption)
	}
	if !strings.Contains(caption, consts.MessageQuestion) {
		t.Errorf("caption does not contain the question: %s", caption)
	}
}

func TestVerdictCaption(t *testing.T) {
	session := Session{
		Title:  "Девятый вал",
		Artist: "Иван Айвазовский",
		Year:   "1850",
		Museum: consts.MuseumRussian,
		Note:   "примечание",
	}

	t.Run("correct", func(t *testing.T) {
		caption := verdictCaption(session, true)

		if !strings.Contains(caption, consts.MessageCorrect) {
			t.Errorf("caption does not contain the correct verdict: %s", caption)
		}
		if !strings.Contains(caption, "примечание") {
			t.Errorf("caption does not contain the note: %s", caption)
		}
	})

	t.Run("wrong", func(t *testing.T) {
		caption := verdictCaption(session, false)

		if !strings.Contains(caption, "❌") {
			t.Errorf("caption does not contain the wrong verdict: %s", caption)
		}
		if !strings.Contains(caption, consts.MuseumRussian) {
			t.Errorf("caption does not name the right museum: %s", caption)
		}
	})

	t.Run("without note", func(t *testing.T) {
		withoutNote := session
		withoutNote.Note = ""

		caption := verdictCaption(withoutNote, true)
		if strings.HasSuffix(caption, " ") {
			t.Errorf("caption has a dangling space: %q", caption)
		}
	})
}

// the bundled dataset must satisfy the data contract: all seven fields
// present as strings, a known museum, and a usable image url
func TestBundledDataset(t *testing.T) {
	bytes, err := os.ReadFile(consts.DefaultDataPath)
	if err != nil {
		t.Fatalf("failed to read bundled dataset: %s", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(bytes, &records); err != nil {
		t.Fatalf("failed to parse bundled dataset: %s", err)
	}
	if len(records) == 0 {
		t.Fatal("bundled dataset is empty")
	}

	fields := []string{"title", "artist", "year", "museum", "image_url", "note", "source"}
	for i, record := range records {
		for _, field := range fields {
			value, exists := record[field]
			if !exists {
				t.Errorf("record %d has no %q field", i, field)
				continue
			}
			if _, ok := value.(string); !ok {
				t.Errorf("record %d: field %q is %T, want string", i, field, value)
			}
		}

		museum, _ := record["museum"].(string)
		if !isValidMuseum(museum) {
			t.Errorf("record %d has an unknown museum: %q", i, museum)
		}
		for _, field := range []string{"title", "artist", "image_url"} {
			if value, _ := record[field].(string); strings.TrimSpace(value) == "" {
				t.Errorf("record %d has an empty %q", i, field)
			}
		}
	}

	// and the loader must keep every record of it
	paintings, err := LoadPaintings(consts.DefaultDataPath)
	if err != nil {
		t.Fatalf("failed to load bundled dataset: %s", err)
	}
	if len(paintings) != len(records) {
		t.Errorf("loader kept %d of %d bundled records", len(paintings), len(records))
	}
}
