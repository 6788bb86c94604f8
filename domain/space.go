package domain

import (
	"github.com/cespare/xxhash/v2"
)

var spaceEmojis = []string{
	"🍇", "🍉", "🍊", "🍋", "🍌", "🍍", "🥭", "🍎", "🍐", "🍑",
	"🍒", "🍓", "🥝", "🍅", "🥥", "🥑", "🍆", "🥕", "🌽", "🌶️",
	"🥦", "🍄", "🥜", "🌰", "🍞", "🥐", "🧀", "🍕", "🌮", "🍣",
	"🍩", "🍪", "🌸", "🌻", "🌵", "🌲", "🍀", "🐝", "🦊", "🐢",
	"🐙", "🦋", "🐳", "🦉", "🐧", "🦀", "🌙", "⭐", "🔥", "🌊",
}

const shortNameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const shortNameLength = 4

func spaceDigest(rootBlock Hash, author PublicKey) uint64 {
	d := xxhash.New()
	_, _ = d.Write(rootBlock[:])
	_, _ = d.Write(author[:])
	return d.Sum64()
}

// SpaceEmoji gives a stable emoji to recognize a space at a glance.
func SpaceEmoji(rootBlock Hash, author PublicKey) string {
	return spaceEmojis[spaceDigest(rootBlock, author)%uint64(len(spaceEmojis))]
}

// SpaceShortName gives a stable 4 characters identifier of a space.
func SpaceShortName(rootBlock Hash, author PublicKey) string {
	digest := spaceDigest(rootBlock, author)
	out := make([]byte, shortNameLength)
	for i := range out {
		out[i] = shortNameAlphabet[digest%uint64(len(shortNameAlphabet))]
		digest /= uint64(len(shortNameAlphabet))
	}
	return string(out)
}
