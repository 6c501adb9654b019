package config

import (
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
}

// fileConfig: clés du fichier TOML optionnel (FICHE_CONFIG).
// Les variables d'environnement gagnent toujours sur le fichier.
type fileConfig struct {
	HTTPPort    string `toml:"http_port"`
	DatabaseDSN string `toml:"database_dsn"`
	JWTSecret   string `toml:"jwt_secret"`
	CORSOrigins string `toml:"cors_allowed_origins"`
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=gibier port=5432 sslmode=disable"

func Load() *Config {
	cfg := &Config{
		HTTPPort:    "8080",
		DatabaseDSN: defaultDSN,
		CORSOrigins: "http://localhost:5173",
	}

	// Fichier TOML optionnel, posé sous les variables d'environnement
	if path := os.Getenv("FICHE_CONFIG"); path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			log.Fatalf("[FATAL] Fichier de configuration illisible (%s): %v", path, err)
		}
		if meta.IsDefined("http_port") {
			cfg.HTTPPort = strings.TrimSpace(raw.HTTPPort)
		}
		if meta.IsDefined("database_dsn") {
			cfg.DatabaseDSN = strings.TrimSpace(raw.DatabaseDSN)
		}
		if meta.IsDefined("jwt_secret") {
			cfg.JWTSecret = strings.TrimSpace(raw.JWTSecret)
		}
		if meta.IsDefined("cors_allowed_origins") {
			cfg.CORSOrigins = strings.TrimSpace(raw.CORSOrigins)
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)

	// Contrôles de sécurité production
	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET non défini ! Obligatoire en production.")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET doit faire au moins 32 caractères ! Risque de sécurité.")
	}
	if cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN utilise la valeur par défaut, à remplacer en production.")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
