package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnvs loads .env files in priority order. godotenv never overwrites a
// variable that is already set, so earlier files win:
// .env.<env>.local, .env.local, .env.<env>, .env. Missing files are ignored.
func LoadDotEnvs(rootPath string) {
	env := os.Getenv("TECHNEWS_ENV")
	if env == "" {
		env = "dev"
	}

	_ = godotenv.Load(rootPath + ".env." + env + ".local")
	_ = godotenv.Load(rootPath + ".env.local")
	_ = godotenv.Load(rootPath + ".env." + env)
	_ = godotenv.Load(rootPath + ".env")
}
