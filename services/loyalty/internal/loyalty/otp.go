package loyalty

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	authpkg "github.com/appetiteclub/apt/auth"
	"github.com/appetiteclub/epicure/pkg/event"
)

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// ErrNameRequired means the code was right but the mobile is new and no name
// was given. The session is kept so the client can retry with a name.
var ErrNameRequired = errors.New("name is required for new customers")

// LoginResult is the outcome of a successful code verification.
type LoginResult struct {
	Customer *Customer
	Created  bool
}

// SendOTP issues a fresh code for mobile, replacing any pending one, and
// hands it to the SMS dispatcher. The code is returned for demo echoing.
func (s *Service) SendOTP(ctx context.Context, mobile string) (string, error) {
	mobile = strings.TrimSpace(mobile)
	if err := ValidateMobile(mobile); err != nil {
		return "", fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
	}

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	now := s.now()
	session := &OTPSession{
		Mobile:    mobile,
		CodeHash:  s.hashCode(code),
		ExpiresAt: now.Add(s.settings.OTPTTL),
		CreatedAt: now,
	}
	if err := s.otps.Put(ctx, session); err != nil {
		return "", fmt.Errorf("%w: store otp: %w", ErrStorage, err)
	}

	s.dispatchOTP(ctx, mobile, code, session)
	s.logger.Info("otp issued", "mobile", mobile, "expires_at", session.ExpiresAt)
	return code, nil
}

// VerifyOTP checks a login code. A wrong code keeps the session for retries;
// an expired one is discarded. New mobiles register with the given name.
func (s *Service) VerifyOTP(ctx context.Context, mobile, code, name string) (*LoginResult, error) {
	mobile = strings.TrimSpace(mobile)
	code = strings.TrimSpace(code)
	if err := ValidateMobile(mobile); err != nil {
		return nil, fmt.Errorf("%w: mobile must be 10 digits", ErrInvalidArgument)
	}
	if !otpPattern.MatchString(code) {
		return nil, fmt.Errorf("%w: otp must be 6 digits", ErrInvalidArgument)
	}

	session, err := s.otps.Get(ctx, mobile)
	if err != nil {
		return nil, fmt.Errorf("%w: load otp: %w", ErrStorage, err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: no pending otp, request a new one", ErrExpired)
	}
	if !s.now().Before(session.ExpiresAt) {
		if err := s.otps.Delete(ctx, mobile); err != nil {
			s.logger.Error("cannot delete expired otp", "mobile", mobile, "error", err)
		}
		return nil, fmt.Errorf("%w: otp expired, request a new one", ErrExpired)
	}
	if !hmac.Equal(session.CodeHash, s.hashCode(code)) {
		return nil, fmt.Errorf("%w: wrong otp", ErrInvalidArgument)
	}

	res, err := s.login(ctx, mobile, name)
	if err != nil {
		return nil, err
	}

	if err := s.otps.Delete(ctx, mobile); err != nil {
		s.logger.Error("cannot delete used otp", "mobile", mobile, "error", err)
	}
	return res, nil
}

func (s *Service) login(ctx context.Context, mobile, name string) (*LoginResult, error) {
	existing, err := s.load(ctx, ByMobile(mobile))
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.IsAdmin(ctx, mobile)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if isAdmin && !existing.IsAdmin {
			existing, err = s.mutate(ctx, ByID(existing.ID), func(c *Customer) error {
				c.IsAdmin = true
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		return &LoginResult{Customer: existing}, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	c := NewCustomer(mobile, name)
	c.IsAdmin = isAdmin
	c.CreatedBy = "otp-login"
	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, ErrMobileTaken) {
			// Registered concurrently by another request.
			winner, lErr := s.GetCustomer(ctx, ByMobile(mobile))
			if lErr != nil {
				return nil, lErr
			}
			return &LoginResult{Customer: winner}, nil
		}
		return nil, fmt.Errorf("%w: create customer: %w", ErrStorage, err)
	}

	if mobile == s.settings.MasterAdminMobile && s.admins != nil {
		grant := &AdminGrant{Mobile: mobile, GrantedBy: "system", GrantedAt: s.now()}
		if err := s.admins.Grant(ctx, grant); err != nil {
			s.logger.Error("cannot record master admin grant", "error", err)
		}
	}

	s.logger.Info("customer registered", "customer_id", c.ID.String(), "is_admin", c.IsAdmin)
	return &LoginResult{Customer: c, Created: true}, nil
}

func (s *Service) hashCode(code string) []byte {
	return authpkg.ComputeLookupHash(code, s.settings.SigningKey)
}

func (s *Service) dispatchOTP(ctx context.Context, mobile, code string, session *OTPSession) {
	if s.otpEvents == nil {
		s.logger.Info("no otp dispatcher configured", "mobile", mobile)
		return
	}
	payload, err := json.Marshal(event.OTPRequestedEvent{
		EventType:  event.EventOTPRequested,
		OccurredAt: session.CreatedAt,
		Mobile:     mobile,
		Code:       code,
		ExpiresAt:  session.ExpiresAt,
	})
	if err != nil {
		s.logger.Error("cannot encode otp event", "error", err)
		return
	}
	if err := s.otpEvents.Publish(ctx, event.OTPTopic, payload); err != nil {
		s.logger.Error("cannot publish otp event", "mobile", mobile, "error", err)
	}
}

// generateOTPCode returns a random code in [100000, 999999].
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
