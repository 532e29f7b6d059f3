package cmd

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"notifications", "approval_events", "expenses", "rule_approvers", "approval_rules", "users", "organizations"} {
				if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		orgID := seedOrganization(db, "Acme Corp", "USD")

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		seedUser(db, orgID, "admin@acme.test", "Ada Admin", string(hash), "admin", nil)
		managerAID := seedUser(db, orgID, "marta@acme.test", "Marta Manager", string(hash), "manager", nil)
		managerBID := seedUser(db, orgID, "miguel@acme.test", "Miguel Manager", string(hash), "manager", nil)
		eveID := seedUser(db, orgID, "eve@acme.test", "Eve Employee", string(hash), "employee", &managerAID)

		seedRule(db, orgID, eveID, managerAID, managerBID)

		fmt.Println("Seed complete. All users share the password:", password)
	},
}

func seedOrganization(db *sqlx.DB, name, currency string) int64 {
	var id int64
	if err := db.QueryRow("SELECT id FROM organizations WHERE name = $1", name).Scan(&id); err == nil {
		fmt.Println("organization already exists:", name)
		return id
	}

	err := db.QueryRow(
		"INSERT INTO organizations (name, default_currency, created_at, updated_at) VALUES ($1, $2, now(), now()) RETURNING id",
		name, currency,
	).Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert organization %s: %v", name, err)
	}
	fmt.Println("Seeded organization:", name)
	return id
}

func seedUser(db *sqlx.DB, orgID int64, email, name, hash, role string, managerID *int64) int64 {
	var id int64
	if err := db.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&id); err == nil {
		fmt.Println("user already exists:", email)
		return id
	}

	err := db.QueryRow(
		`INSERT INTO users (organization_id, email, name, password_hash, role, manager_id, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, true, now(), now()) RETURNING id`,
		orgID, email, name, hash, role, managerID,
	).Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert user %s: %v", email, err)
	}
	fmt.Println("Seeded user:", email, "role:", role)
	return id
}

// seedRule installs one demo rule for the employee: both managers must
// approve, in order, for a combined 100 percent.
func seedRule(db *sqlx.DB, orgID, appliesTo, firstApprover, secondApprover int64) {
	var id int64
	if err := db.QueryRow(
		"SELECT id FROM approval_rules WHERE organization_id = $1 AND applies_to_user_id = $2", orgID, appliesTo,
	).Scan(&id); err == nil {
		fmt.Println("approval rule already exists for user", appliesTo)
		return
	}

	err := db.QueryRow(
		`INSERT INTO approval_rules (organization_id, name, applies_to_user_id, manager_id, is_manager_approver, approver_sequence, min_approval_percent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, true, true, 100, now(), now()) RETURNING id`,
		orgID, "Two-step manager approval", appliesTo, firstApprover,
	).Scan(&id)
	if err != nil {
		log.Fatalf("failed to insert approval rule: %v", err)
	}

	approvers := []struct {
		userID int64
		seq    int
	}{
		{firstApprover, 1},
		{secondApprover, 2},
	}
	for _, a := range approvers {
		if _, err := db.Exec(
			"INSERT INTO rule_approvers (rule_id, user_id, required, sequence_no, auto_approve) VALUES ($1, $2, true, $3, false)",
			id, a.userID, a.seq,
		); err != nil {
			log.Fatalf("failed to insert rule approver: %v", err)
		}
	}

	fmt.Println("Seeded approval rule with", len(approvers), "approvers")
}
