package config_test

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliadvertman/segctl/internal/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("DatabaseConfig", func() {
	Describe("DefaultDatabaseConfig", func() {
		It("returns the documented defaults", func() {
			c := config.DefaultDatabaseConfig()
			Expect(c.Host).To(Equal("localhost"))
			Expect(c.Port).To(Equal(5432))
			Expect(c.SSLMode).To(Equal("disable"))
			Expect(c.MaxConnections).To(Equal(5))
			Expect(c.StaleTimeout).To(Equal(300 * time.Second))
		})
	})

	Describe("LoadFromEnv", func() {
		var c config.DatabaseConfig
		var envVars = []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_MAX_CONNECTIONS", "DB_STALE_TIMEOUT", "DB_CONNECTION_TIMEOUT"}
		var saved map[string]string

		BeforeEach(func() {
			c = config.DefaultDatabaseConfig()
			saved = map[string]string{}
			for _, k := range envVars {
				saved[k] = os.Getenv(k)
				_ = os.Unsetenv(k)
			}
		})

		AfterEach(func() {
			for k, v := range saved {
				if v == "" {
					_ = os.Unsetenv(k)
				} else {
					_ = os.Setenv(k, v)
				}
			}
		})

		Context("when all environment variables are set", func() {
			BeforeEach(func() {
				_ = os.Setenv("DB_HOST", "dbhost")
				_ = os.Setenv("DB_PORT", "6543")
				_ = os.Setenv("DB_USER", "svc")
				_ = os.Setenv("DB_PASSWORD", "secret")
				_ = os.Setenv("DB_NAME", "segctl_test")
				_ = os.Setenv("DB_MAX_CONNECTIONS", "12")
				_ = os.Setenv("DB_STALE_TIMEOUT", "60")
				_ = os.Setenv("DB_CONNECTION_TIMEOUT", "5")
			})

			It("loads every value from the environment", func() {
				c.LoadFromEnv()
				Expect(c.Host).To(Equal("dbhost"))
				Expect(c.Port).To(Equal(6543))
				Expect(c.User).To(Equal("svc"))
				Expect(c.Password).To(Equal("secret"))
				Expect(c.Database).To(Equal("segctl_test"))
				Expect(c.MaxConnections).To(Equal(12))
				Expect(c.StaleTimeout).To(Equal(60 * time.Second))
				Expect(c.AcquireTimeout).To(Equal(5 * time.Second))
			})
		})

		Context("when DB_PORT is not a number", func() {
			BeforeEach(func() { _ = os.Setenv("DB_PORT", "not-a-port") })

			It("keeps the default port", func() {
				original := c.Port
				c.LoadFromEnv()
				Expect(c.Port).To(Equal(original))
			})
		})
	})

	Describe("Validate", func() {
		It("accepts the default config", func() {
			Expect(config.DefaultDatabaseConfig().Validate()).NotTo(HaveOccurred())
		})

		It("rejects an empty host", func() {
			c := config.DefaultDatabaseConfig()
			c.Host = ""
			Expect(c.Validate()).To(MatchError(ContainSubstring("database host is required")))
		})

		It("rejects an out-of-range port", func() {
			c := config.DefaultDatabaseConfig()
			c.Port = 70000
			Expect(c.Validate()).To(MatchError(ContainSubstring("must be between 1 and 65535")))
		})

		It("rejects a non-positive max_connections", func() {
			c := config.DefaultDatabaseConfig()
			c.MaxConnections = 0
			Expect(c.Validate()).To(HaveOccurred())
		})
	})
})

var _ = Describe("RedisConfig", func() {
	Describe("DefaultRedisConfig", func() {
		It("returns the documented defaults", func() {
			c := config.DefaultRedisConfig()
			Expect(c.Addr).To(Equal("localhost:6379"))
			Expect(c.LockKey).To(Equal("segctl:engine:leader"))
			Expect(c.LockTTL).To(Equal(30 * time.Second))
		})
	})

	Describe("LoadFromEnv", func() {
		var c config.RedisConfig
		var envVars = []string{"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "REDIS_LOCK_TTL"}
		var saved map[string]string

		BeforeEach(func() {
			c = config.DefaultRedisConfig()
			saved = map[string]string{}
			for _, k := range envVars {
				saved[k] = os.Getenv(k)
				_ = os.Unsetenv(k)
			}
		})

		AfterEach(func() {
			for k, v := range saved {
				if v == "" {
					_ = os.Unsetenv(k)
				} else {
					_ = os.Setenv(k, v)
				}
			}
		})

		It("loads every value from the environment", func() {
			_ = os.Setenv("REDIS_ADDR", "redis:6380")
			_ = os.Setenv("REDIS_PASSWORD", "s3cr3t")
			_ = os.Setenv("REDIS_DB", "2")
			_ = os.Setenv("REDIS_LOCK_TTL", "45")

			c.LoadFromEnv()
			Expect(c.Addr).To(Equal("redis:6380"))
			Expect(c.Password).To(Equal("s3cr3t"))
			Expect(c.DB).To(Equal(2))
			Expect(c.LockTTL).To(Equal(45 * time.Second))
		})

		It("keeps the default lock TTL when REDIS_LOCK_TTL is malformed", func() {
			_ = os.Setenv("REDIS_LOCK_TTL", "not-a-duration")
			original := c.LockTTL
			c.LoadFromEnv()
			Expect(c.LockTTL).To(Equal(original))
		})
	})

	Describe("Validate", func() {
		It("accepts the default config", func() {
			Expect(config.DefaultRedisConfig().Validate()).NotTo(HaveOccurred())
		})

		It("rejects an empty address", func() {
			c := config.DefaultRedisConfig()
			c.Addr = ""
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("rejects a non-positive lock ttl", func() {
			c := config.DefaultRedisConfig()
			c.LockTTL = 0
			Expect(c.Validate()).To(HaveOccurred())
		})
	})
})

var _ = Describe("Config", func() {
	Describe("Load", func() {
		It("loads a consistent default config with no file and no env", func() {
			c, err := config.Load("")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.PollInterval).To(Equal(30 * time.Second))
			Expect(c.TemplatesDir).To(Equal("templates"))
			Expect(c.HTTPAddr).To(Equal(":8080"))
			Expect(c.CORSAllowedOrigins).To(Equal([]string{"*"}))
			Expect(c.Redis.Addr).To(Equal("localhost:6379"))
		})

		It("tolerates a nonexistent yaml path", func() {
			_, err := config.Load("/nonexistent/config.yaml")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("LoadFromEnv", func() {
		It("loads the ancillary HTTP and notification settings", func() {
			_ = os.Setenv("HTTP_ADDR", ":9090")
			_ = os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
			_ = os.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/abc")
			defer func() {
				_ = os.Unsetenv("HTTP_ADDR")
				_ = os.Unsetenv("CORS_ALLOWED_ORIGINS")
				_ = os.Unsetenv("SLACK_WEBHOOK_URL")
			}()

			c := config.Default()
			c.LoadFromEnv()
			Expect(c.HTTPAddr).To(Equal(":9090"))
			Expect(c.CORSAllowedOrigins).To(Equal([]string{"https://a.example", "https://b.example"}))
			Expect(c.SlackWebhookURL).To(Equal("https://hooks.slack.test/abc"))
		})
	})
})
