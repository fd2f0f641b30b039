package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/pevans/newsreap/harvest"
	"github.com/pevans/newsreap/retry"
	"github.com/pevans/newsreap/scraper"
	"github.com/pevans/newsreap/session"
	"github.com/pevans/newsreap/store"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvBool parses a bool from environment variable or returns default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func main() {
	sitePath := flag.String("site", getEnv("NEWSREAP_SITE", "site.yaml"), "Path to site config YAML (NEWSREAP_SITE)")
	dbPath := flag.String("db", getEnv("NEWSREAP_DB", "articles.db"), "Path to article database (NEWSREAP_DB)")
	snapshotPath := flag.String("snapshot", getEnv("NEWSREAP_SNAPSHOT", "articles.json"), "Path to the batch snapshot file (NEWSREAP_SNAPSHOT)")
	navTimeout := flag.Duration("timeout", getEnvDuration("NEWSREAP_NAV_TIMEOUT", 10*time.Second), "Timeout per page navigation (NEWSREAP_NAV_TIMEOUT)")
	userAgent := flag.String("user-agent", getEnv("NEWSREAP_USER_AGENT", ""), "User-Agent header for page fetches (NEWSREAP_USER_AGENT)")
	checkRobots := flag.Bool("robots", getEnvBool("NEWSREAP_ROBOTS", true), "Honor robots.txt when fetching pages (NEWSREAP_ROBOTS)")

	flag.Parse()

	if err := run(*sitePath, *dbPath, *snapshotPath, *navTimeout, *userAgent, *checkRobots); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

// run owns the job's resources: the store and session are acquired here and
// released on every exit path.
func run(sitePath, dbPath, snapshotPath string, navTimeout time.Duration, userAgent string, checkRobots bool) error {
	site, err := scraper.LoadSiteConfig(sitePath)
	if err != nil {
		return err
	}
	log.Printf("Harvesting %s (resource %q)", site.Name, site.Resource)

	log.Printf("Opening article store: %s", dbPath)
	articleStore, err := store.NewArticleStore(dbPath)
	if err != nil {
		return err
	}
	defer articleStore.Close()

	pageSession := session.New(session.Options{
		Timeout:     navTimeout,
		UserAgent:   userAgent,
		CheckRobots: checkRobots,
	})
	defer pageSession.Close()

	config := &harvest.Config{
		NavigateTimeout: navTimeout,
		Retry:           retry.DefaultConfig(),
		SnapshotPath:    snapshotPath,
	}

	job := harvest.NewJob(site, pageSession, articleStore, config)
	records, err := job.Run(context.Background())
	if err != nil {
		return err
	}

	log.Printf("Done: %d records stored, snapshot at %s", len(records), snapshotPath)
	return nil
}
