package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/zfogg/petfinder/internal/cache"
	"github.com/zfogg/petfinder/internal/config"
	"github.com/zfogg/petfinder/internal/database"
	"github.com/zfogg/petfinder/internal/logger"
	"go.uber.org/zap"
)

// ServiceCheck verifies one dependency is reachable
type ServiceCheck func(ctx context.Context) error

// ServiceValidator fails startup when a required dependency is unreachable
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]ServiceCheck
	timeout          time.Duration
}

// NewServiceValidator creates a validator for the services named in cfg
func NewServiceValidator(cfg *config.Config) *ServiceValidator {
	return &ServiceValidator{
		requiredServices: normalizeServices(cfg.RequiredServices),
		checks: map[string]ServiceCheck{
			"elasticsearch": elasticsearchCheck(cfg.Elasticsearch),
			"redis":         redisCheck(cfg.Redis),
			"database":      databaseCheck,
		},
		timeout: 10 * time.Second,
	}
}

// WithCheck replaces or adds the check for a service
func (sv *ServiceValidator) WithCheck(name string, check ServiceCheck) *ServiceValidator {
	sv.checks[name] = check
	return sv
}

// ValidateServices validates all configured services
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.requiredServices))

	for _, serviceName := range sv.requiredServices {
		check, ok := sv.checks[serviceName]
		if !ok {
			logger.Log.Warn("Unknown service type in validation", zap.String("service", serviceName))
			continue
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.ErrorWithFields("Required service validation failed", err, zap.String("service", serviceName))
			return fmt.Errorf("required service %q validation failed: %w", serviceName, err)
		}

		logger.Log.Info("Service validated successfully", zap.String("service", serviceName))
	}

	logger.Log.Info("All required services validated successfully")
	return nil
}

// elasticsearchCheck calls the cluster info endpoint
func elasticsearchCheck(cfg config.ElasticsearchConfig) ServiceCheck {
	return func(ctx context.Context) error {
		client, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to create Elasticsearch client: %w", err)
		}

		res, err := client.Info(client.Info.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to connect to Elasticsearch: %w", err)
		}
		defer res.Body.Close()

		if res.IsError() {
			return fmt.Errorf("elasticsearch returned error status: %s", res.Status())
		}
		return nil
	}
}

func redisCheck(cfg config.RedisConfig) ServiceCheck {
	return func(ctx context.Context) error {
		redisClient, err := cache.NewRedisClient(cfg.Host, cfg.Port, cfg.Password)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		return redisClient.Ping(ctx)
	}
}

func databaseCheck(_ context.Context) error {
	return database.Health()
}

func normalizeServices(services []string) []string {
	out := make([]string, 0, len(services))
	for _, s := range services {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
