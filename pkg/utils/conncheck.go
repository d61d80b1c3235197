package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/mpapenbr/pylonrace-go/log"
)

// WaitForTCP tries to connect to addr until it succeeds, the timeout is
// reached or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()

			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

func ExtractFromDBURL(url string) string {
	param := resolveRegex(
		"^postgres(ql)?://(.*@)?(?P<addr>(?P<host>[^/:]*?)(:(?P<port>\\d+))?)(/.*)?$", url)
	if len(param) == 0 || param["addr"] == "" {
		return ""
	}
	if port, ok := param["port"]; ok && port != "" {
		return param["addr"] // if port is found, the addr contains our wanted value
	}
	return fmt.Sprintf("%s:5432", param["addr"])
}

// ExtractFromNatsURL returns host:port of the first server in a NATS url list.
func ExtractFromNatsURL(url string) string {
	param := resolveRegex(
		"^(nats|tls)://(.*@)?(?P<addr>(?P<host>[^,:/]*?)(:(?P<port>\\d+))?)(,.*)?$", url)
	if len(param) == 0 || param["addr"] == "" {
		return ""
	}
	if port, ok := param["port"]; ok && port != "" {
		return param["addr"]
	}
	return fmt.Sprintf("%s:4222", param["addr"])
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)

	paramsMap = make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if name != "" && i > 0 && i < len(match) {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
