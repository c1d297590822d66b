package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/invoicely/invoicely/scripts/internal"
)

// Command represents a script that can be run
type Command struct {
	Name        string
	Description string
	Run         func() error
}

var commands = []Command{
	{
		Name:        "add-user",
		Description: "Create a staff user (the first SUPERADMIN signs new invoices)",
		Run:         internal.AddNewUser,
	},
	{
		Name:        "seed-invoices",
		Description: "Seed demo invoices and payments through the ledger",
		Run:         internal.SeedInvoices,
	},
	{
		Name:        "reconcile",
		Description: "Compare every invoice with its payment history",
		Run:         internal.ReconcileInvoices,
	},
}

func main() {
	var (
		listCommands bool
		cmdName      string
		email        string
		name         string
		role         string
		signature    string
		userID       string
		numInvoices  int
		repair       bool
	)

	flag.BoolVar(&listCommands, "list", false, "List all available commands")
	flag.StringVar(&cmdName, "cmd", "", "Command to run")
	flag.StringVar(&email, "user-email", "", "Email of the user to create")
	flag.StringVar(&name, "user-name", "", "Username of the user to create")
	flag.StringVar(&role, "user-role", "", "Role of the user to create (ADMIN or SUPERADMIN)")
	flag.StringVar(&signature, "user-signature", "", "Signature image (data URL) of the user to create")
	flag.StringVar(&userID, "user-id", "", "User recorded as the author of seeded data")
	flag.IntVar(&numInvoices, "num-invoices", 0, "Number of invoices to seed")
	flag.BoolVar(&repair, "repair", false, "Write derived ledger values back when reconciling")

	flag.Parse()

	if listCommands {
		fmt.Println("Available commands:")
		for _, cmd := range commands {
			fmt.Printf("  %-20s %s\n", cmd.Name, cmd.Description)
		}
		return
	}

	if cmdName == "" {
		log.Fatal("Please specify a command to run using -cmd flag. Use -list to see available commands.")
	}

	// Set command-specific environment variables
	setEnv := map[string]string{
		"USER_EMAIL":     email,
		"USER_NAME":      name,
		"USER_ROLE":      role,
		"USER_SIGNATURE": signature,
		"USER_ID":        userID,
	}
	if numInvoices > 0 {
		setEnv["NUM_INVOICES"] = strconv.Itoa(numInvoices)
	}
	if repair {
		setEnv["REPAIR"] = "true"
	}
	for key, value := range setEnv {
		if value != "" {
			os.Setenv(key, value)
		}
	}

	// Find and run the command
	for _, cmd := range commands {
		if cmd.Name == cmdName {
			if err := cmd.Run(); err != nil {
				log.Fatalf("Error running command %s: %v", cmdName, err)
			}
			return
		}
	}

	log.Fatalf("Unknown command: %s. Use -list to see available commands.", cmdName)
}
