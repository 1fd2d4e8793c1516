package captcha

import (
	"math/rand/v2"
	"strconv"
)

// Generator produces a human-readable prompt and its expected answer.
type Generator interface {
	Generate() (prompt, answer string)
}

// MathGenerator asks for the result of a small addition, subtraction or
// multiplication. Operands stay single-digit and subtraction never goes
// negative.
type MathGenerator struct{}

func (MathGenerator) Generate() (string, string) {
	a := rand.IntN(9) + 1
	b := rand.IntN(9) + 1
	switch rand.IntN(3) {
	case 0:
		return strconv.Itoa(a) + " + " + strconv.Itoa(b), strconv.Itoa(a + b)
	case 1:
		if a < b {
			a, b = b, a
		}
		return strconv.Itoa(a) + " - " + strconv.Itoa(b), strconv.Itoa(a - b)
	default:
		return strconv.Itoa(a) + " * " + strconv.Itoa(b), strconv.Itoa(a * b)
	}
}

// FixedGenerator always returns the same prompt and answer. Useful for tests
// and local development.
type FixedGenerator struct {
	Prompt string
	Answer string
}

func (g FixedGenerator) Generate() (string, string) {
	return g.Prompt, g.Answer
}
