// Package companypref remembers the company a browser last worked in.
//
// The value lives only in a signed cookie and only feeds
// access.DefaultCompany as a suggestion. The access guard never reads it;
// every request still names its company explicitly.
package companypref

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const companyKey = "company_id"

// Store reads and writes the remembered company cookie.
type Store struct {
	cookies *sessions.CookieStore
	name    string
	log     *zap.Logger
}

// New builds a Store signing cookies with key. In production (secure=true)
// cookies are Secure + SameSite=None; over plain http in development they
// are SameSite=Lax so browsers accept them.
func New(key, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*Store, error) {
	if key == "" {
		return nil, errors.New("session key is empty; provide 32+ random chars")
	}
	if len(key) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(key)))
	}
	if name == "" {
		name = "crmhub-company"
	}

	cs := sessions.NewCookieStore([]byte(key))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	}
	cs.Options = opts

	return &Store{cookies: cs, name: name, log: logger}, nil
}

// DevKey returns a random key for local runs without a configured
// session key. Cookies signed with it do not survive a restart.
func DevKey() string {
	return hex.EncodeToString(securecookie.GenerateRandomKey(32))
}

func (s *Store) session(r *http.Request) *sessions.Session {
	sess, err := s.cookies.Get(r, s.name)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			s.log.Debug("company cookie invalid, ignoring", zap.Error(err))
		} else {
			s.log.Warn("company cookie store error", zap.Error(err))
		}
	}
	return sess
}

// Remembered returns the remembered company id, or the zero id.
func (s *Store) Remembered(r *http.Request) primitive.ObjectID {
	raw, _ := s.session(r).Values[companyKey].(string)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID
	}
	return id
}

// Remember stores companyID in the response cookie.
func (s *Store) Remember(w http.ResponseWriter, r *http.Request, companyID primitive.ObjectID) error {
	sess := s.session(r)
	sess.Values[companyKey] = companyID.Hex()
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save company cookie: %w", err)
	}
	return nil
}

// Forget clears the remembered company.
func (s *Store) Forget(w http.ResponseWriter, r *http.Request) error {
	sess := s.session(r)
	delete(sess.Values, companyKey)
	return sess.Save(r, w)
}
