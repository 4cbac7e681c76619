package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophpool/internal/flagx"
)

// parseFlags applies the short command-line flags:
//
//	-a  gRPC bind address
//	-m  metrics bind address ("" disables)
//	-d  PostgreSQL DSN
//	-s  JWT secret
//	-t  access token validity
//	-k  settlement cooldown
//	-o  comma separated settle authority identities
//	-w  draw cron schedule ("" disables)
//	-r  Redis address for the draw lock
//	-b  S3 bucket for receipts
//	-e  S3 endpoint
//	-l  log level
//
// Durations use Go syntax ("15m", "168h").
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-m", "-d", "-s", "-t", "-k", "-o", "-w", "-r", "-b", "-e", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address for the /metrics endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.Cooldown, "k", config.Cooldown, "minimum time between settlements")
	authority := fs.String("o", strings.Join(config.SettleAuthority, ","), "identities allowed to settle")
	fs.StringVar(&config.DrawSchedule, "w", config.DrawSchedule, "cron schedule of automatic draws")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address for the draw lock")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket for receipts")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SettleAuthority = splitList(*authority)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
