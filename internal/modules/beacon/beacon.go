// Package beacon is the exit-path journal write: a self-contained payload
// carrying its own credential, accepted by a lightweight endpoint and sent
// fire-and-forget when a page goes away.
package beacon

import (
	"context"
	"strconv"
	"strings"

	"github.com/moody-app/moody/internal/pkg/apperr"
	"github.com/moody-app/moody/internal/pkg/docstore"
	"go.uber.org/zap"
)

// Payload is the beacon body. Month is zero-based; pointers tell a missing
// field from January or from day zero.
type Payload struct {
	IDToken string `json:"idToken"`
	Year    *int   `json:"year"`
	Month   *int   `json:"month"`
	Day     *int   `json:"day"`
	Entry   string `json:"entry"`
}

// NewPayload fills a payload for one day.
func NewPayload(token string, year, month, day int, entry string) Payload {
	return Payload{IDToken: token, Year: &year, Month: &month, Day: &day, Entry: entry}
}

func (p Payload) complete() bool {
	return strings.TrimSpace(p.IDToken) != "" && p.Year != nil && p.Month != nil && p.Day != nil && p.Entry != ""
}

// Verifier resolves a credential to a user id.
type Verifier func(token string) (uid string, err error)

// Service stores beacon payloads.
type Service struct {
	docs   docstore.Store
	verify Verifier
	logger *zap.Logger
}

func NewService(docs docstore.Store, verify Verifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{docs: docs, verify: verify, logger: logger}
}

// Save merges the journal text into the owner's document.
func (s *Service) Save(ctx context.Context, p Payload) error {
	const op = "beacon.save"
	if !p.complete() {
		return apperr.Invalid(op, "Missing required fields")
	}
	if *p.Month < 0 || *p.Month > 11 || *p.Day < 1 || *p.Day > 31 {
		return apperr.Invalid(op, "invalid date")
	}
	uid, err := s.verify(p.IDToken)
	if err != nil || uid == "" {
		return apperr.Unauthenticated(op)
	}

	y, m, d := *p.Year, *p.Month, *p.Day
	patch := docstore.Patch{
		docstore.Path(y, m, "journal_"+strconv.Itoa(d)):   p.Entry,
		docstore.Path(y, m, "updatedAt_"+strconv.Itoa(d)): docstore.ServerTimestamp,
	}
	if err := s.docs.Merge(ctx, docstore.UserKey(uid), patch); err != nil {
		s.logger.Error("journal beacon save failed", zap.String("uid", uid), zap.Error(err))
		if apperr.KindOf(err) != apperr.KindUnknown {
			return err
		}
		return apperr.Wrap(apperr.KindRemoteWriteFailed, op, err)
	}
	return nil
}
