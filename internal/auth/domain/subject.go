package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSubject is returned by ParseSubject.
var ErrMalformedSubject = errors.New("domain: malformed subject")

// SubjectKind tags which identity a Subject refers to.
type SubjectKind string

const (
	SubjectAccount     SubjectKind = "account"
	SubjectPhoneNumber SubjectKind = "phone-number"
	SubjectEmail       SubjectKind = "email"
)

// Subject is who a token was issued to. Only the fields for Kind are set:
//
//	account       ID, Email
//	phone-number  PhoneNumber
//	email         Email
type Subject struct {
	Kind        SubjectKind
	ID          string
	Email       string
	PhoneNumber string
}

func AccountSubject(id, email string) Subject {
	return Subject{Kind: SubjectAccount, ID: id, Email: email}
}

func PhoneNumberSubject(phone string) Subject {
	return Subject{Kind: SubjectPhoneNumber, PhoneNumber: phone}
}

func EmailSubject(email string) Subject {
	return Subject{Kind: SubjectEmail, Email: email}
}

// String renders the canonical "<kind>|<field>|..." form carried in "sub".
func (s Subject) String() string {
	switch s.Kind {
	case SubjectAccount:
		return string(s.Kind) + "|" + s.ID + "|" + s.Email
	case SubjectPhoneNumber:
		return string(s.Kind) + "|" + s.PhoneNumber
	case SubjectEmail:
		return string(s.Kind) + "|" + s.Email
	default:
		return ""
	}
}

// ParseSubject is the inverse of String.
func ParseSubject(raw string) (Subject, error) {
	kind, rest, ok := strings.Cut(raw, "|")
	if !ok {
		return Subject{}, fmt.Errorf("%w: %q", ErrMalformedSubject, raw)
	}

	var s Subject
	switch SubjectKind(kind) {
	case SubjectAccount:
		id, email, ok := strings.Cut(rest, "|")
		if !ok || id == "" || email == "" || strings.Contains(email, "|") {
			return Subject{}, fmt.Errorf("%w: %q", ErrMalformedSubject, raw)
		}
		s = AccountSubject(id, email)
	case SubjectPhoneNumber:
		if rest == "" || strings.Contains(rest, "|") {
			return Subject{}, fmt.Errorf("%w: %q", ErrMalformedSubject, raw)
		}
		s = PhoneNumberSubject(rest)
	case SubjectEmail:
		if rest == "" || strings.Contains(rest, "|") {
			return Subject{}, fmt.Errorf("%w: %q", ErrMalformedSubject, raw)
		}
		s = EmailSubject(rest)
	default:
		return Subject{}, fmt.Errorf("%w: unknown kind %q", ErrMalformedSubject, kind)
	}
	return s, nil
}

// IdentityID is the id sessions are keyed by: the account id, phone number
// or email depending on kind.
func (s Subject) IdentityID() string {
	switch s.Kind {
	case SubjectAccount:
		return s.ID
	case SubjectPhoneNumber:
		return s.PhoneNumber
	default:
		return s.Email
	}
}

// CustomClaims are the extra token claims describing the subject.
func (s Subject) CustomClaims() map[string]string {
	switch s.Kind {
	case SubjectAccount:
		return map[string]string{"account": s.ID, "email": s.Email}
	case SubjectPhoneNumber:
		return map[string]string{"phone-number": s.PhoneNumber}
	case SubjectEmail:
		return map[string]string{"email": s.Email}
	default:
		return map[string]string{}
	}
}

// AMR is an authentication method reference.
type AMR string

const (
	AMRPassword  AMR = "pwd"
	AMRBiometric AMR = "bio"
	AMRNetwork   AMR = "net"
	AMROTP       AMR = "otp"
	AMRMFA       AMR = "mfa"
)

// ErrUnknownAMR is returned by ParseAMR.
var ErrUnknownAMR = errors.New("domain: unknown amr")

func ParseAMR(s string) (AMR, error) {
	switch a := AMR(s); a {
	case AMRPassword, AMRBiometric, AMRNetwork, AMROTP, AMRMFA:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAMR, s)
}
