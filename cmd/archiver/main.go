package main

import (
	"log"

	"payment-service/internal/app"
)

func main() {
	a, err := app.NewArchiver()
	if err != nil {
		log.Fatal("error creating an archiver instance: ", err)
	}

	err = a.Run()
	if err != nil {
		log.Fatal("archiver startup error: ", err)
	}
}
