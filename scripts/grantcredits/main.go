package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	_ "github.com/go-sql-driver/mysql"
)

// Ops helper: tops up a workspace credit balance directly in the database.
//
//	go run ./scripts/grantcredits -dsn "user:pass@tcp(127.0.0.1:3306)/talkbase" -workspace <uuid> -amount 1000
func main() {
	dsn := flag.String("dsn", "", "MySQL DSN")
	workspace := flag.String("workspace", "", "workspace UUID")
	amount := flag.Int64("amount", 0, "credits to add")
	flag.Parse()

	if *dsn == "" || *workspace == "" || *amount <= 0 {
		flag.Usage()
		log.Fatal("dsn, workspace and a positive amount are required")
	}

	db, err := sql.Open("mysql", *dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	result, err := db.Exec(
		"UPDATE credit_balances SET balance = balance + ? WHERE workspace_id = ?",
		*amount, *workspace)
	if err != nil {
		log.Fatalf("update balance: %v", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		_, err = db.Exec(
			"INSERT INTO credit_balances (workspace_id, balance, total_used) VALUES (?, ?, 0)",
			*workspace, *amount)
		if err != nil {
			log.Fatalf("create balance: %v", err)
		}
		fmt.Printf("created balance for %s with %d credits\n", *workspace, *amount)
		return
	}

	var balance int64
	err = db.QueryRow("SELECT balance FROM credit_balances WHERE workspace_id = ?", *workspace).Scan(&balance)
	if err != nil {
		log.Fatalf("read balance: %v", err)
	}
	fmt.Printf("workspace %s now has %d credits\n", *workspace, balance)
}
