package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedProducts(db)
	seedPromoUsage(db)

	log.Println("Seeding completed successfully!")
}

func seedProducts(db *sql.DB) {
	products := []struct {
		Name        string
		Slug        string
		Description string
		Price       string
		Discount    sql.NullString
		Stock       int
		Category    string
	}{
		{"Wireless Headphones", "wireless-headphones", "Over-ear wireless headphones with noise cancellation.", "199.99", ns("10"), 25, "electronics"},
		{"Mechanical Keyboard", "mechanical-keyboard", "Tenkeyless keyboard with hot-swappable switches.", "129.00", sql.NullString{}, 40, "electronics"},
		{"4K Monitor", "4k-monitor", "27-inch IPS monitor with USB-C charging.", "449.00", ns("15"), 12, "electronics"},
		{"Smart Speaker", "smart-speaker", "Compact speaker with voice assistant.", "59.99", sql.NullString{}, 80, "electronics"},
		{"Running Shoes", "running-shoes", "Lightweight trainers for daily runs.", "89.95", ns("20"), 60, "sports"},
		{"Yoga Mat", "yoga-mat", "Non-slip mat, 6mm thick.", "29.50", sql.NullString{}, 120, "sports"},
		{"Water Bottle", "water-bottle", "Insulated bottle, keeps drinks cold 24h.", "24.00", sql.NullString{}, 200, "sports"},
		{"Desk Lamp", "desk-lamp", "LED lamp with adjustable colour temperature.", "49.99", ns("5"), 45, "home"},
		{"Aero Chair", "aero-chair", "Ergonomic chair with lumbar support.", "349.00", ns("25"), 8, "home"},
		{"Ceramic Mug Set", "ceramic-mug-set", "Set of four stoneware mugs.", "34.99", sql.NullString{}, 90, "home"},
		{"Fantasy Novel", "fantasy-novel", "Hardcover first edition.", "27.99", sql.NullString{}, 150, "books"},
		{"Cookbook", "cookbook", "120 weeknight recipes.", "32.00", ns("10"), 70, "books"},
	}

	log.Println("Seeding Products...")
	for _, p := range products {
		_, err := db.Exec(`
			INSERT INTO products (name, slug, description, price, discount_percentage, stock, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				discount_percentage = EXCLUDED.discount_percentage,
				stock = EXCLUDED.stock,
				category = EXCLUDED.category,
				updated_at = now();
		`, p.Name, p.Slug, p.Description, p.Price, p.Discount, p.Stock, p.Category)
		if err != nil {
			log.Printf("Failed to seed product %s: %v", p.Slug, err)
		}
	}
}

func seedPromoUsage(db *sql.DB) {
	codes := []string{"SAVE10", "FLAT20", "WELCOME5"}

	log.Println("Seeding Promo Usage Counters...")
	for _, code := range codes {
		_, err := db.Exec(`
			INSERT INTO promo_usage (code, uses)
			VALUES ($1, 0)
			ON CONFLICT (code) DO NOTHING;
		`, code)
		if err != nil {
			log.Printf("Failed to seed promo counter %s: %v", code, err)
		}
	}
}

func ns(v string) sql.NullString {
	return sql.NullString{String: v, Valid: true}
}
