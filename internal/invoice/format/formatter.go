// Package format renders the human-facing form of an invoice number.
package format

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate yields numbers like INV-2026-000042.
const DefaultTemplate = "INV-{YYYY}-{SEQ6}"

var (
	ErrEmptyTemplate   = errors.New("empty_number_template")
	ErrInvalidSequence = errors.New("invalid_number_sequence")
	ErrUnresolvedToken = errors.New("unresolved_number_token")
)

var paddedSeq = regexp.MustCompile(`\{SEQ(\d+)\}`)

// DisplayNumber substitutes {YYYY} {YY} {MM} {DD} from issuedAt and {SEQ} or a
// zero padded {SEQn} from seq.
func DisplayNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", ErrEmptyTemplate
	}
	if seq <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidSequence, seq)
	}

	issuedAt = issuedAt.UTC()
	out := strings.NewReplacer(
		"{YYYY}", issuedAt.Format("2006"),
		"{YY}", issuedAt.Format("06"),
		"{MM}", issuedAt.Format("01"),
		"{DD}", issuedAt.Format("02"),
		"{SEQ}", strconv.FormatInt(seq, 10),
	).Replace(template)

	out = paddedSeq.ReplaceAllStringFunc(out, func(token string) string {
		width, err := strconv.Atoi(paddedSeq.FindStringSubmatch(token)[1])
		if err != nil || width <= 0 || width > 18 {
			return token
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.ContainsAny(out, "{}") {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedToken, out)
	}
	return out, nil
}
