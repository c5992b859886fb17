package ai

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detector     lingua.LanguageDetector
	detectorOnce sync.Once
)

// getDetector returns a singleton language detector instance
func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		// Build detector with common languages for better performance
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English,
				lingua.Spanish,
				lingua.French,
				lingua.German,
				lingua.Italian,
				lingua.Portuguese,
				lingua.Dutch,
				lingua.Polish,
				lingua.Turkish,
				lingua.Russian,
				lingua.Ukrainian,
				lingua.Arabic,
				lingua.Persian,
				lingua.Hebrew,
				lingua.Hindi,
				lingua.Chinese,
				lingua.Japanese,
				lingua.Korean,
				lingua.Vietnamese,
				lingua.Thai,
				lingua.Indonesian,
				lingua.Swedish,
				lingua.Danish,
				lingua.Finnish,
				lingua.Czech,
				lingua.Greek,
				lingua.Romanian,
				lingua.Hungarian,
			).
			WithMinimumRelativeDistance(0.25).
			Build()
	})
	return detector
}

// languageNames maps detected languages to the English name used in the
// reply-language prompt instruction
var languageNames = map[lingua.Language]string{
	lingua.English:    "English",
	lingua.Spanish:    "Spanish",
	lingua.French:     "French",
	lingua.German:     "German",
	lingua.Italian:    "Italian",
	lingua.Portuguese: "Portuguese",
	lingua.Dutch:      "Dutch",
	lingua.Polish:     "Polish",
	lingua.Turkish:    "Turkish",
	lingua.Russian:    "Russian",
	lingua.Ukrainian:  "Ukrainian",
	lingua.Arabic:     "Arabic",
	lingua.Persian:    "Persian",
	lingua.Hebrew:     "Hebrew",
	lingua.Hindi:      "Hindi",
	lingua.Chinese:    "Chinese",
	lingua.Japanese:   "Japanese",
	lingua.Korean:     "Korean",
	lingua.Vietnamese: "Vietnamese",
	lingua.Thai:       "Thai",
	lingua.Indonesian: "Indonesian",
	lingua.Swedish:    "Swedish",
	lingua.Danish:     "Danish",
	lingua.Finnish:    "Finnish",
	lingua.Czech:      "Czech",
	lingua.Greek:      "Greek",
	lingua.Romanian:   "Romanian",
	lingua.Hungarian:  "Hungarian",
}

// DetectLanguage returns the English name of the language the text is written
// in, empty string when detection is unreliable or the text is too short.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(text)
	if !exists {
		return ""
	}
	return languageNames[language]
}
