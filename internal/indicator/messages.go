package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish  locale = "en"
	localeJapanese locale = "ja"
)

type messages struct {
	recording    string
	transcribing string
	summarizing  string
	done         string
	errorText    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "ja") {
		return localeJapanese
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeJapanese:
		return messages{
			recording:    "録音中…",
			transcribing: "文字起こし中…",
			summarizing:  "要約中…",
			done:         "完了",
			errorText:    "処理に失敗しました",
		}
	default:
		return messages{
			recording:    "Recording…",
			transcribing: "Transcribing…",
			summarizing:  "Summarizing…",
			done:         "Done",
			errorText:    "Dictation pipeline error",
		}
	}
}
