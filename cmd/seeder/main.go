// The seeder inserts sample paid orders into Postgres so a locally running
// pipeline has something to poll.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"notifier/internal/config"
	"notifier/internal/db"
	"notifier/internal/models"
)

var customerNames = []string{
	"Alice Hartley", "Bruno Keller", "Carmen Diaz", "Dmitry Volkov", "Elena Moreau",
}

func randomUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func generateOrder() *models.PaidOrder {
	now := time.Now()
	deliveryType := models.DeliveryCourier
	if rand.Intn(2) == 0 {
		deliveryType = models.DeliveryPickup
	}

	return &models.PaidOrder{
		ID:            randomUUID(),
		CustomerID:    randomUUID(),
		CustomerName:  customerNames[rand.Intn(len(customerNames))],
		Amount:        float64(rand.Intn(49000)+1000) / 100,
		DeliveryType:  deliveryType,
		PaymentStatus: "paid",
		CreatedAt:     now.Add(-time.Duration(rand.Intn(600)) * time.Second),
		UpdatedAt:     now,
	}
}

func main() {
	count := flag.Int("count", 1, "Number of paid orders to insert")
	flag.Parse()

	cfg, err := config.LoadConfig("config/config.yml")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := db.NewOrderRepo(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	for i := 0; i < *count; i++ {
		order := generateOrder()
		if err := repo.SavePaidOrder(ctx, order); err != nil {
			log.Printf("Failed to insert order %d: %v", i+1, err)
			continue
		}
		fmt.Printf("Inserted paid order: %s (%.2f)\n", order.ID, order.Amount)
	}
}
