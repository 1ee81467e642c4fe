package main

// gallery.go: static paintings dataset and quiz captions

import (
	"encoding/json"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/igorrodygin/museum-quiz-bot/consts"
)

// Painting is one record of the bundled dataset.
type Painting struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Year     string `json:"year"`
	Museum   string `json:"museum"`
	ImageURL string `json:"image_url"`
	Note     string `json:"note"`
	Source   string `json:"source"`
}

// LoadPaintings reads a dataset file and returns its playable records.
//
// All fields are whitespace-trimmed. Records with an unknown museum or
// without an image url are skipped. An empty result is an error: there
// is nothing to quiz about then.
func LoadPaintings(path string) ([]Painting, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var loaded []Painting
	if err := json.Unmarshal(bytes, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}

	paintings := make([]Painting, 0, len(loaded))
	for _, painting := range loaded {
		painting.Title = strings.TrimSpace(painting.Title)
		painting.Artist = strings.TrimSpace(painting.Artist)
		painting.Year = strings.TrimSpace(painting.Year)
		painting.Museum = strings.TrimSpace(painting.Museum)
		painting.ImageURL = strings.TrimSpace(painting.ImageURL)
		painting.Note = strings.TrimSpace(painting.Note)
		painting.Source = strings.TrimSpace(painting.Source)

		if !isValidMuseum(painting.Museum) || painting.ImageURL == "" {
			continue
		}

		paintings = append(paintings, painting)
	}

	if len(paintings) == 0 {
		return nil, fmt.Errorf("no playable painting in: %s", path)
	}

	return paintings, nil
}

// isValidMuseum checks if given museum is one of the two quiz answers.
func isValidMuseum(museum string) bool {
	return museum == consts.MuseumRussian || museum == consts.MuseumTretyakov
}

// questionCaption generates a photo caption (HTML) for asking a question.
func questionCaption(painting Painting) string {
	return fmt.Sprintf(
		"🖼 <b>%s</b>\n%s, %s\n\n<i>%s</i>",
		html.EscapeString(painting.Title),
		html.EscapeString(painting.Artist),
		html.EscapeString(painting.Year),
		consts.MessageQuestion,
	)
}

// verdictCaption generates a photo caption (HTML) for a graded answer.
func verdictCaption(session Session, correct bool) string {
	verdict := consts.MessageCorrect
	if !correct {
		verdict = fmt.Sprintf("❌ Неверно. Правильный ответ: <b>%s</b>.", html.EscapeString(session.Museum))
	}

	note := ""
	if session.Note != "" {
		note = " " + html.EscapeString(session.Note)
	}

	return fmt.Sprintf(
		"🖼 <b>%s</b>\n%s, %s\n\n%s%s",
		html.EscapeString(session.Title),
		html.EscapeString(session.Artist),
		html.EscapeString(session.Year),
		verdict,
		note,
	)
}
