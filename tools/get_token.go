package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// Obtains a refresh token for IMAP XOAUTH/OAUTHBEARER access to a Google mailbox.
func main() {
	clientID := os.Getenv("IMAP_CLIENT_ID")
	clientSecret := os.Getenv("IMAP_CLIENT_SECRET")

	if clientID == "" || clientSecret == "" {
		log.Fatal("Please set IMAP_CLIENT_ID and IMAP_CLIENT_SECRET environment variables")
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{gmail.MailGoogleComScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  "http://localhost:8080/callback",
	}

	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Go to the following link in your browser: %v\n", authURL)
	fmt.Println("\nAfter authorization, you'll be redirected to a URL. Copy the 'code' parameter from that URL.")

	var authCode string
	fmt.Print("\nEnter the authorization code: ")
	fmt.Scan(&authCode)

	tok, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Unable to retrieve token from web: %v", err)
	}

	fmt.Printf("\nRefresh Token: %s\n", tok.RefreshToken)
	fmt.Printf("Expiry: %v\n", tok.Expiry)

	fmt.Println("\nAdd the refresh token to your environment variables:")
	fmt.Println("export IMAP_AUTH=\"oauth2\"")
	fmt.Printf("export IMAP_REFRESH_TOKEN=\"%s\"\n", tok.RefreshToken)
}
