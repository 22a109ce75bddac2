package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"ecosystem-api/internal/auth"
)

func main() {
	secretFile := flag.String("secret-file", "", "Path to the JWT signing secret (defaults to $ECOAPI_AUTH_JWT_SECRET)")
	userID := flag.String("id", "1", "User ID (sub claim)")
	cuID := flag.String("cu-id", "", "Core unit ID the user belongs to (optional)")
	userName := flag.String("user", "admin", "User name claim")
	flag.Parse()

	secret, err := loadSecret(*secretFile, os.Getenv("ECOAPI_AUTH_JWT_SECRET"))
	if err != nil {
		exitErr(err)
	}

	signer, err := auth.NewSigner(secret)
	if err != nil {
		exitErr(err)
	}

	token, err := signer.Issue(auth.Actor{ID: *userID, CuID: *cuID, UserName: *userName})
	if err != nil {
		exitErr(err)
	}
	fmt.Println(token)
}

func loadSecret(path, fromEnv string) ([]byte, error) {
	if path == "" {
		if fromEnv == "" {
			return nil, fmt.Errorf("no secret: pass -secret-file or set ECOAPI_AUTH_JWT_SECRET")
		}
		return []byte(fromEnv), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return []byte(secret), nil
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
