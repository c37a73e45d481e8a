package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeJapanese, resolveLocale("ja_JP.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
	require.Equal(t, localeEnglish, resolveLocale("de_DE.UTF-8"))
}

func TestIndicatorMessagesCompleteForEveryLocale(t *testing.T) {
	for _, tag := range []locale{localeEnglish, localeJapanese} {
		msgs := indicatorMessages(tag)
		require.NotEmpty(t, msgs.recording)
		require.NotEmpty(t, msgs.transcribing)
		require.NotEmpty(t, msgs.summarizing)
		require.NotEmpty(t, msgs.done)
		require.NotEmpty(t, msgs.errorText)
	}
}
