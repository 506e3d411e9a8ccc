package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jgivc/regarchive/internal/app"
)

func main() {
	cfgFileName := flag.String("c", "", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	app := app.New(*cfgFileName)
	go app.Start()

	c := make(chan os.Signal, 1)
	defer close(c)

	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	fmt.Println("Received termination signal. Shutting down...")
	app.Stop()
	time.Sleep(time.Second)
	fmt.Println("done")
}
