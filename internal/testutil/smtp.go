package testutil

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
)

// AcceptAll answers every command of a probe positively.
var AcceptAll = map[string]string{
	"EHLO":      "250 mx.example.com",
	"HELO":      "250 mx.example.com",
	"MAIL FROM": "250 OK",
	"RCPT TO":   "250 OK",
}

// SMTPDialer returns a dialer connecting to an in-memory SMTP server that
// answers every line with the response whose key prefixes it.
// Recipients listed in reject get "550 No such user" instead.
func SMTPDialer(responses map[string]string, reject ...string) func(context.Context, string, string) (net.Conn, error) {
	return func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go serveSMTP(server, responses, reject)
		return client, nil
	}
}

func serveSMTP(conn net.Conn, responses map[string]string, reject []string) {
	defer func() { _ = conn.Close() }()

	_, _ = fmt.Fprintf(conn, "220 %s ESMTP\r\n", MXHost)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)

		if strings.HasPrefix(cmd, "QUIT") {
			_, _ = fmt.Fprintf(conn, "221 Bye\r\n")
			return
		}
		if strings.HasPrefix(cmd, "RCPT TO") && rejected(line, reject) {
			_, _ = fmt.Fprintf(conn, "550 5.1.1 No such user\r\n")
			continue
		}
		for prefix, resp := range responses {
			if strings.HasPrefix(cmd, prefix) {
				_, _ = fmt.Fprintf(conn, "%s\r\n", resp)
				break
			}
		}
	}
}

func rejected(line string, reject []string) bool {
	for _, r := range reject {
		if strings.Contains(strings.ToLower(line), "<"+strings.ToLower(r)+">") {
			return true
		}
	}
	return false
}
