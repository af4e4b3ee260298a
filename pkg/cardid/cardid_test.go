package cardid

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("trims and upper-cases", func(t *testing.T) {
		assert.Equal(t, "HC-1234-5678", Normalize("  hc-1234-5678 "))
	})

	t.Run("truncates long input", func(t *testing.T) {
		out := Normalize("HC-1234-5678-EXTRA-LONG-TAIL")
		assert.LessOrEqual(t, len(out), MaxRawLength)
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{"hc-0000-0001", "  HC-9999-9999", "garbage in", ""}
		for _, in := range inputs {
			once := Normalize(in)
			assert.Equal(t, once, Normalize(once))
		}
	})
}

func TestIsValid(t *testing.T) {
	valid := []string{
		"HC-1234-5678",
		"hc-1234-5678",
		"  HC-0000-0000  ",
	}
	for _, in := range valid {
		assert.True(t, IsValid(in), "expected valid: %q", in)
	}

	invalid := []string{
		"",
		"HC-123-5678",
		"HC-12345-678",
		"XX-1234-5678",
		"HC-1234-567A",
		"HC 1234 5678",
		"HC-1234-5678-9",
	}
	for _, in := range invalid {
		assert.False(t, IsValid(in), "expected invalid: %q", in)
	}
}

func TestGenerate(t *testing.T) {
	for i := 0; i < 50; i++ {
		card, err := Generate()
		assert.NoError(t, err)
		assert.True(t, IsValid(card), "generated card %q failed validation", card)
		assert.True(t, IsValid("  "+card+" "), "whitespace variant of %q failed", card)
		assert.Len(t, card, 11)
	}
}

func TestGenerateDated(t *testing.T) {
	at := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	card, err := GenerateDated(at)
	assert.NoError(t, err)
	assert.True(t, IsValid(card))
	assert.Equal(t, "HC-2503-", card[:8])
}

func TestGenerateOTP(t *testing.T) {
	digits := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		assert.NoError(t, err)
		assert.True(t, digits.MatchString(code), "code %q is not six digits", code)
	}
}
