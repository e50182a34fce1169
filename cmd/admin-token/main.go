package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forgo/exitlane/api/internal/model"
	"github.com/forgo/exitlane/api/pkg/jwt"
)

func main() {
	privateKeyPath := flag.String("key", "./keys/private.pem", "Path to JWT private key")
	publicKeyPath := flag.String("pub", "./keys/public.pem", "Path to JWT public key, written by -gen-keys")
	genKeys := flag.Bool("gen-keys", false, "Write a fresh RSA key pair to -key and -pub, then exit")
	userID := flag.String("user", "user:admin", "User record id for the token")
	email := flag.String("email", "admin@exitlane.dev", "Email for the token")
	username := flag.String("username", "admin", "Username for the token")
	role := flag.String("role", "admin", "Role claim: admin or user")
	issuer := flag.String("issuer", "exitlane.forgo.software", "JWT issuer, must match the API's JWT_ISSUER")
	expMins := flag.Int("exp", 60*24, "Token expiration in minutes (default: 1 day)")
	apiURL := flag.String("api", "http://localhost:8080", "API base URL shown in the usage hint")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if *genKeys {
		if err := jwt.GenerateKeyPair(*privateKeyPath, *publicKeyPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s and %s\n", *privateKeyPath, *publicKeyPath)
		return
	}

	if !model.UserRole(*role).Valid() {
		fmt.Fprintf(os.Stderr, "Error: -role must be admin or user, got %q\n", *role)
		os.Exit(2)
	}
	if !strings.HasPrefix(*userID, "user:") {
		*userID = "user:" + *userID
	}

	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: *privateKeyPath,
		Issuer:         *issuer,
		ExpirationMins: *expMins,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT service: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nMake sure you have generated keys with: admin-token -gen-keys\n")
		os.Exit(1)
	}

	token, err := jwtService.Sign(jwt.Claims{
		UserID:   *userID,
		Email:    *email,
		Username: *username,
		Role:     *role,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output := map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   *expMins * 60,
			"user_id":      *userID,
			"email":        *email,
			"role":         *role,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	expTime := time.Now().Add(time.Duration(*expMins) * time.Minute)
	fmt.Println("Exitlane Token Generated")
	fmt.Println("========================")
	fmt.Printf("User ID:  %s\n", *userID)
	fmt.Printf("Email:    %s\n", *email)
	fmt.Printf("Role:     %s\n", *role)
	fmt.Printf("Expires:  %s\n", expTime.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	path := "/v1/auth/me"
	if *role == "admin" {
		path = "/v1/admin/stats"
	}
	fmt.Printf("  curl -H 'Authorization: Bearer %s' %s%s\n", token[:min(len(token), 50)]+"...", strings.TrimRight(*apiURL, "/"), path)
}
