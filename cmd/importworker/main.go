// Command importworker consumes the import.completed and result.recorded
// queues and appends each event to the audit log.  It runs alongside the
// API server and reconnects on broker failures.
package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/teststack/test-management-service/internal/queue"
)

func main() {
	_ = godotenv.Load()

	log.Println("audit consumer starting")
	if err := queue.StartAuditConsumer(); err != nil {
		log.Fatalf("audit consumer: %v", err)
	}
}
