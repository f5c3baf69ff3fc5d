package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	"bookstore_back_end/internal/config"
)

// Connections regroupe les clients externes. Un champ nil signifie service désactivé.
type Connections struct {
	Postgres *pgxpool.Pool
	Scylla   *gocql.Session
	Redis    *redis.Client
	Elastic  *elasticsearch.Client
	MinIO    *minio.Client
}

// --- Initialisation ---
// Postgres est obligatoire avec STORE_DRIVER=postgres, les autres services sont optionnels.
func Connect(ctx context.Context, cfg *config.Config) (*Connections, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conns := &Connections{}

	// 1. PostgreSQL
	if cfg.StoreDriver == "postgres" {
		pool, err := connectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		conns.Postgres = pool
	}

	// 2. ScyllaDB (suivi d'expédition + audit)
	if len(cfg.ScyllaHosts) > 0 && cfg.ScyllaKeyspace != "" {
		session, err := connectScylla(cfg)
		if err != nil {
			log.Printf("⚠️ ScyllaDB indisponible, suivi en mémoire: %v", err)
		} else {
			conns.Scylla = session
		}
	}

	// 3. Redis
	if cfg.RedisHost != "" {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			log.Printf("⚠️ Redis indisponible: %v", err)
		} else {
			conns.Redis = client
		}
	}

	// 4. Elasticsearch
	if cfg.ElasticURL != "" {
		client, err := connectElastic(cfg)
		if err != nil {
			log.Printf("⚠️ Elasticsearch indisponible, recherche sur le cache: %v", err)
		} else {
			conns.Elastic = client
		}
	}

	// 5. MinIO
	if cfg.MinIOEndpoint != "" {
		client, err := connectMinIO(ctx, cfg)
		if err != nil {
			log.Printf("⚠️ MinIO indisponible, factures non archivées: %v", err)
		} else {
			conns.MinIO = client
		}
	}

	log.Println("✅ Connexions initialisées")
	return conns, nil
}

func (c *Connections) Close() {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Scylla != nil {
		c.Scylla.Close()
		log.Println("🔌 Session ScyllaDB fermée")
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// Health indique l'état de chaque dépendance configurée
func (c *Connections) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := map[string]string{}
	if c.Postgres != nil {
		stats["postgres"] = status(c.Postgres.Ping(ctx))
	}
	if c.Redis != nil {
		stats["redis"] = status(c.Redis.Ping(ctx).Err())
	}
	if c.Scylla != nil {
		stats["scylla"] = status(c.Scylla.Query("SELECT now() FROM system.local").WithContext(ctx).Exec())
	}
	return stats
}

func status(err error) string {
	if err != nil {
		return "down"
	}
	return "up"
}

// =============================================
// POSTGRESQL
// =============================================
func connectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL non configuré")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connexion postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Println("✅ Connecté à PostgreSQL")
	return pool, nil
}

// =============================================
// SCYLLA DB
// =============================================
func connectScylla(cfg *config.Config) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Keyspace = cfg.ScyllaKeyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 20
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = 1 * time.Second
	if cfg.ScyllaUsername != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.ScyllaUsername,
			Password: cfg.ScyllaPassword,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("erreur création session pour %s: %w", cfg.ScyllaKeyspace, err)
	}
	log.Printf("✅ Nouvelle session ScyllaDB pour keyspace '%s'", cfg.ScyllaKeyspace)
	return session, nil
}

// =============================================
// REDIS
// =============================================
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	log.Println("✅ Connecté à Redis")
	return client, nil
}

// =============================================
// ELASTICSEARCH
// =============================================
func connectElastic(cfg *config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, err
	}
	res, err := client.Info()
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch: %s", res.Status())
	}
	log.Println("✅ Connecté à Elasticsearch")
	return client, nil
}

// =============================================
// MINIO
// =============================================
func connectMinIO(ctx context.Context, cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("vérification bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("création bucket: %w", err)
		}
		log.Println("🪣 Bucket créé :", cfg.MinIOBucket)
	} else {
		log.Println("🪣 Bucket MinIO déjà présent :", cfg.MinIOBucket)
	}
	log.Println("✅ Connecté à MinIO :", cfg.MinIOEndpoint)
	return client, nil
}
