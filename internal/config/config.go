package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time is used for duration-typed settings

	"github.com/eventix/event-ticketing/internal/gateway"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Gateway settings live in their own struct
// so they can be injected into the signer and redirect builder instead of
// being read from process-wide state.
type Config struct {
	Env           string         // application environment (e.g. "dev", "prod")
	Port          string         // HTTP port to listen on
	DBUser        string         // database username
	DBPass        string         // database password (optional)
	DBHost        string         // database host address
	DBPort        string         // database port number
	DBName        string         // database name
	JWTSecret     string         // secret used to verify access tokens from the identity provider
	TicketHold    time.Duration  // reservation hold window before a pending ticket expires
	SweepInterval time.Duration  // how often the background expiry sweep runs
	Gateway       gateway.Config // merchant settings for the payment gateway
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:           must("APP_ENV"),
		Port:          must("APP_PORT"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"), // empty allowed
		DBHost:        must("DB_HOST"),
		DBPort:        must("DB_PORT"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		TicketHold:    time.Duration(envIntDefault("TICKET_HOLD_MIN", 30)) * time.Minute,
		SweepInterval: time.Duration(envIntDefault("EXPIRY_SWEEP_SEC", 60)) * time.Second,
		Gateway: gateway.Config{
			TmnCode:    must("VNP_TMN_CODE"),
			HashSecret: must("VNP_HASH_SECRET"),
			PayURL:     must("VNP_PAY_URL"),
			ReturnURL:  must("VNP_RETURN_URL"),
			Locale:     envDefault("VNP_LOCALE", "vn"),
			CurrCode:   envDefault("VNP_CURR_CODE", "VND"),
			OrderType:  envDefault("VNP_ORDER_TYPE", "other"),
		},
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envDefault returns the value of an optional environment variable or
// the provided default when it is unset or empty.
func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envIntDefault is like envDefault but converts the value to an integer.
// Invalid values fall back to the default rather than aborting startup.
func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
