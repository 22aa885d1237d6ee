// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

//go:build integration

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/havenwell/haven/internal/httpapi"
	"github.com/havenwell/haven/internal/identity"
	idpostgres "github.com/havenwell/haven/internal/identity/postgres"
	"github.com/havenwell/haven/internal/store"
	"github.com/havenwell/haven/internal/token"
)

var e2eSigningKey = []byte("0123456789abcdef0123456789abcdef")

// startStack brings up a database container, applies migrations, and
// serves the full API on an ephemeral port.
func startStack() (baseURL string, cleanup func(), err error) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("haven_test"),
		pgcontainer.WithUsername("haven"),
		pgcontainer.WithPassword("haven"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	_ = migrator.Close()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	issuer, err := token.NewHS256Issuer(e2eSigningKey, time.Hour)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	svc, err := identity.NewService(
		idpostgres.NewCredentialStore(pool),
		identity.NewArgon2idHasher(),
		issuer,
		8,
	)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	handler := httpapi.NewHandler(svc, nil, 10*time.Second, nil)
	server := httpapi.NewServer("127.0.0.1:0", handler.Routes())
	if _, err := server.Start(); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return "", nil, err
	}

	cleanup = func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(stopCtx)
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return "http://" + server.Addr(), cleanup, nil
}

func postCredentials(url, email, password string) (*http.Response, map[string]any) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&decoded)).To(Succeed())
	return resp, decoded
}

var _ = Describe("Account API", Ordered, func() {
	var baseURL string
	var cleanup func()

	BeforeAll(func() {
		var err error
		baseURL, cleanup, err = startStack()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		cleanup()
	})

	Describe("registration", func() {
		It("registers a new account", func() {
			resp, body := postCredentials(baseURL+"/api/register", "e2e@example.com", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body["message"]).To(Equal("Registration successful"))
		})

		It("rejects the same email again", func() {
			resp, body := postCredentials(baseURL+"/api/register", "e2e@example.com", "password456")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Email already registered"))
		})

		It("treats differently-cased emails as the same account", func() {
			resp, body := postCredentials(baseURL+"/api/register", "E2E@Example.COM", "password789")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body["message"]).To(Equal("Email already registered"))
		})

		It("rejects malformed emails", func() {
			resp, _ := postCredentials(baseURL+"/api/register", "not-an-email", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("admits exactly one of several simultaneous registrations", func() {
			const callers = 6
			statuses := make([]int, callers)
			messages := make([]string, callers)

			var wg sync.WaitGroup
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					resp, body := postCredentials(baseURL+"/api/register", "race@example.com", "password123")
					statuses[i] = resp.StatusCode
					messages[i], _ = body["message"].(string)
				}()
			}
			wg.Wait()

			created := 0
			for i, status := range statuses {
				if status == http.StatusCreated {
					created++
					continue
				}
				Expect(status).To(Equal(http.StatusBadRequest))
				Expect(messages[i]).To(Equal("Email already registered"))
			}
			Expect(created).To(Equal(1))

			// The losers did not corrupt the winner's account.
			resp, _ := postCredentials(baseURL+"/api/login", "race@example.com", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("login", func() {
		It("issues a verifiable token for valid credentials", func() {
			resp, body := postCredentials(baseURL+"/api/login", "e2e@example.com", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["message"]).To(Equal("Login successful"))

			tokenStr, ok := body["token"].(string)
			Expect(ok).To(BeTrue(), "token should be a string")

			claims, err := token.Parse(e2eSigningKey, tokenStr)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.Subject).NotTo(BeEmpty())
			Expect(claims.ExpiresAt.Time).To(BeTemporally(">", time.Now()))
		})

		It("accepts the original casing on login", func() {
			resp, _ := postCredentials(baseURL+"/api/login", "E2E@EXAMPLE.COM", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("rejects a wrong password", func() {
			resp, body := postCredentials(baseURL+"/api/login", "e2e@example.com", "wrongpassword")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("Invalid email or password"))
			Expect(body).NotTo(HaveKey("token"))
		})

		It("rejects an unknown email with the same message", func() {
			resp, body := postCredentials(baseURL+"/api/login", "nobody@example.com", "password123")
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(body["message"]).To(Equal("Invalid email or password"))
		})
	})
})
