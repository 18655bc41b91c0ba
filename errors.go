package mailverify

import "errors"

var (
	// ErrInvalidSMTPOptions is returned when WithSMTP is called
	// but HeloDomain or MailFrom is missing.
	ErrInvalidSMTPOptions = errors.New("mailverify: SMTPOptions requires HeloDomain and MailFrom")

	// ErrInvalidDNSBLZone is returned when a configured blacklist zone
	// is not a valid domain name.
	ErrInvalidDNSBLZone = errors.New("mailverify: invalid DNSBL zone")

	// ErrInvalidDNSOptions is returned when the configured DNS server
	// cannot be used.
	ErrInvalidDNSOptions = errors.New("mailverify: invalid DNSOptions")
)
