package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long a guest link stays valid. Fixed at issuance,
// not renewable.
const DefaultTokenTTL = 24 * time.Hour

const defaultStaffSessionTTL = 12 * time.Hour

// TokenClaims identifies exactly one attestation. A guest token carries no
// privilege beyond reading and confirming that attestation.
type TokenClaims struct {
	AttestationID uint
	GuestID       uint
	HotelID       uint
}

// StaffClaims identifies an authenticated staff session.
type StaffClaims struct {
	StaffID uint
	HotelID uint
}

// TokenService signs and verifies both guest-link tokens and staff session
// tokens with a process-wide HMAC secret loaded once at startup. The two
// kinds are separated by a typ claim so one can never stand in for the other.
type TokenService struct {
	secret []byte
}

func NewTokenService(secret []byte) *TokenService {
	return &TokenService{secret: secret}
}

// Issue creates a signed guest-link token bound to one attestation.
func (s *TokenService) Issue(attestationID, guestID, hotelID uint, ttl time.Duration) (string, error) {
	if attestationID == 0 {
		return "", errors.New("attestation ID cannot be zero")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"typ": "guest",
		"att": attestationID,
		"gid": guestID,
		"hid": hotelID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks signature and expiry. It reports only valid/invalid:
// callers present one neutral "invalid or expired" message regardless of
// whether the failure was tampering, malformation or expiry.
func (s *TokenService) Verify(tokenString string) (TokenClaims, bool) {
	claims, ok := s.parse(tokenString, "guest")
	if !ok {
		return TokenClaims{}, false
	}
	att, ok1 := claimUint(claims, "att")
	gid, ok2 := claimUint(claims, "gid")
	hid, ok3 := claimUint(claims, "hid")
	if !ok1 || !ok2 || !ok3 || att == 0 {
		return TokenClaims{}, false
	}
	return TokenClaims{AttestationID: att, GuestID: gid, HotelID: hid}, true
}

// IssueStaffSession creates a staff login token.
func (s *TokenService) IssueStaffSession(staffID, hotelID uint) (string, error) {
	if staffID == 0 {
		return "", errors.New("staff ID cannot be zero")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"typ": "staff",
		"sub": staffID,
		"hid": hotelID,
		"iat": now.Unix(),
		"exp": now.Add(defaultStaffSessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyStaffSession validates a staff login token.
func (s *TokenService) VerifyStaffSession(tokenString string) (StaffClaims, bool) {
	claims, ok := s.parse(tokenString, "staff")
	if !ok {
		return StaffClaims{}, false
	}
	sub, ok1 := claimUint(claims, "sub")
	hid, ok2 := claimUint(claims, "hid")
	if !ok1 || !ok2 || sub == 0 {
		return StaffClaims{}, false
	}
	return StaffClaims{StaffID: sub, HotelID: hid}, true
}

func (s *TokenService) parse(tokenString, wantType string) (jwt.MapClaims, bool) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, false
	}
	return claims, true
}

func claimUint(claims jwt.MapClaims, key string) (uint, bool) {
	f, ok := claims[key].(float64)
	if !ok || f < 0 {
		return 0, false
	}
	return uint(f), true
}
