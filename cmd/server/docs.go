package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           TradeSense API
// @version         0.1.0
// @description     Funded trading challenges: simulated trades, rule evaluation, payouts.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
