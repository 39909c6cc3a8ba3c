package storefront

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"lowercases", "ELDEN RING", "eldenring"},
		{"strips punctuation", "Marvel's Spider-Man: Remastered", "marvelsspidermanremastered"},
		{"keeps digits", "Cyberpunk 2077", "cyberpunk2077"},
		{"unicode dropped", "Pokémon", "pokmon"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title))
		})
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	titles := []string{"Control Ultimate Edition", "The Witcher 3: Wild Hunt", "112 Operator"}
	for _, title := range titles {
		once := NormalizeTitle(title)
		assert.Equal(t, once, NormalizeTitle(once), "normalizing %q twice changed the result", title)
	}
}

func TestTitlesMatch(t *testing.T) {
	assert.True(t, TitlesMatch("Control", "CONTROL"))
	assert.True(t, TitlesMatch("Half-Life 2", "Half Life 2"))
	assert.False(t, TitlesMatch("Marvel's Spider-Man", "Spider-Man"))
	assert.False(t, TitlesMatch("", ""))
}
