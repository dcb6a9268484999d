package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"taskmarket/internal/auth"
	"taskmarket/internal/config"
	"taskmarket/internal/db"
	"taskmarket/internal/logging"
	"taskmarket/internal/model"
	"taskmarket/internal/repository"
	"taskmarket/internal/service"
)

// SeedUser is one entry of a demo users document.
type SeedUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

var demoUsers = []SeedUser{
	{Name: "Demo Admin", Email: "admin@taskmarket.local", Password: "admin123", Role: "admin"},
	{Name: "Demo Buyer", Email: "buyer@taskmarket.local", Password: "buyer123", Role: "buyer"},
	{Name: "Demo Developer", Email: "dev@taskmarket.local", Password: "dev12345", Role: "developer"},
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Database maintenance and demo data for taskmarket",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newResetCmd(), newAdminCmd(), newDemoCmd())
	return root
}

type env struct {
	cfg *config.Config
	log *logrus.Logger
	db  *gorm.DB
}

func connect() (*env, error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN, db.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("Connected to database")

	if err := db.Migrate(gormDB); err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, db: gormDB}, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			e.log.Info("Database migrations completed")
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop every table and migrate again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop tables without --yes")
			}
			e, err := connect()
			if err != nil {
				return err
			}
			if err := db.DropAll(e.db); err != nil {
				return err
			}
			if err := db.Migrate(e.db); err != nil {
				return err
			}
			e.log.Warn("Database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all tables")
	return cmd
}

func newAdminCmd() *cobra.Command {
	var u SeedUser
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}
			u.Role = string(model.RoleAdmin)
			created, _, err := seedUsers(cmd.Context(), e, []SeedUser{u})
			if err != nil {
				return err
			}
			if created == 0 {
				e.log.WithField("email", u.Email).Info("Admin already exists")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "login email")
	cmd.Flags().StringVar(&u.Password, "password", "", "login password (min 6 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newDemoCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed demo users and a project for the first buyer",
		Long:  "Seeds demo users. --source may be a JSON file path or an http(s) URL holding a list of {name, email, password, role}.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect()
			if err != nil {
				return err
			}

			users := demoUsers
			if source != "" {
				e.log.Infof("Loading users from: %s", source)
				if users, err = loadUsers(cmd.Context(), source); err != nil {
					return err
				}
			}

			created, skipped, err := seedUsers(cmd.Context(), e, users)
			if err != nil {
				return err
			}
			if err := seedDemoProject(cmd.Context(), e, users); err != nil {
				return err
			}
			e.log.WithFields(logrus.Fields{
				"created": created,
				"skipped": skipped,
				"total":   created + skipped,
			}).Info("Seed completed successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "JSON file or URL with users to seed")
	return cmd
}

// loadUsers reads a users document from a local file or an http(s) URL.
func loadUsers(ctx context.Context, source string) ([]SeedUser, error) {
	var body []byte
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch users: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("source returned status code: %d", resp.StatusCode)
		}
		if body, err = io.ReadAll(resp.Body); err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
	} else {
		var err error
		if body, err = os.ReadFile(source); err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
	}

	var users []SeedUser
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return users, nil
}

// seedUsers registers each user whose email is not taken yet.
func seedUsers(ctx context.Context, e *env, users []SeedUser) (created, skipped int, err error) {
	repo := repository.NewUserRepository(e.db)
	jwtService := auth.NewJWTService(e.cfg.JWTSecret, e.cfg.AccessTokenTTL, e.cfg.RefreshTokenTTL)
	authService := service.NewAuthService(repo, jwtService, auth.NewTokenStore(nil), e.log)

	for _, u := range users {
		role, err := model.ParseRole(u.Role)
		if err != nil {
			e.log.WithField("email", u.Email).Warnf("Skipping user with invalid role: %s", u.Role)
			skipped++
			continue
		}

		_, err = repo.FindByEmail(ctx, u.Email)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, skipped, fmt.Errorf("error checking user %s: %w", u.Email, err)
		}

		user, err := authService.Register(ctx, u.Name, u.Email, u.Password, role)
		if err != nil {
			return created, skipped, fmt.Errorf("error creating user %s: %w", u.Email, err)
		}
		e.log.WithFields(logrus.Fields{"id": user.ID, "email": user.Email, "role": user.Role}).Info("User created")
		created++
	}
	return created, skipped, nil
}

// seedDemoProject gives the first seeded buyer a project unless they already own one.
func seedDemoProject(ctx context.Context, e *env, users []SeedUser) error {
	userRepo := repository.NewUserRepository(e.db)
	projectRepo := repository.NewProjectRepository(e.db)

	for _, u := range users {
		if u.Role != string(model.RoleBuyer) {
			continue
		}
		buyer, err := userRepo.FindByEmail(ctx, u.Email)
		if err != nil {
			return fmt.Errorf("find buyer %s: %w", u.Email, err)
		}
		owned, err := projectRepo.ListByBuyer(ctx, buyer.ID)
		if err != nil {
			return fmt.Errorf("list projects of %s: %w", u.Email, err)
		}
		if len(owned) > 0 {
			return nil
		}

		project, err := service.NewProjectService(projectRepo, e.log).
			Create(ctx, buyer.Actor(), "Demo project", "Seeded for local testing")
		if err != nil {
			return fmt.Errorf("create demo project: %w", err)
		}
		e.log.WithFields(logrus.Fields{"id": project.ID, "buyer": u.Email}).Info("Project created")
		return nil
	}
	return nil
}
