package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/ffnsync/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.DBPath, convey.ShouldBeEmpty)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			convey.So(cfg.GuardSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.SyncTimeout(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.MergeContinueOnError, convey.ShouldBeFalse)
			convey.So(cfg.ResyncSchedule, convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"addr must not be empty": func(c *config.Config) { c.Addr = "" },
			"ffn_base_url":           func(c *config.Config) { c.FFNBaseURL = "ftp://ffn.extranat.fr" },
			"fetch_timeout_ms":       func(c *config.Config) { c.FetchTimeoutMS = 0 },
			"log_format must be":     func(c *config.Config) { c.LogFormat = "xml" },
			"absolute http(s) URL":   func(c *config.Config) { c.FFNBaseURL = "/webffn/nat_recherche.php" },
		}

		for msg, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)
			err := cfg.Validate()

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, msg)
		}
	})
}
