package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"
)

// Usage example on the command line:
// > go run main.go -url=http://localhost:8080 -apikey=secret
func main() {
	urlPtr := flag.String("url", "http://localhost:8080", "base URL of the member store")
	keyPtr := flag.String("apikey", "", "api key presented to the member store")
	flag.Parse()

	totalWaitTime := 0
	for {
		req, err := http.NewRequest(http.MethodGet, *urlPtr+"/rest/v1/members?limit=1", nil)
		if err != nil {
			panic(err)
		}
		if *keyPtr != "" {
			req.Header.Set("apikey", *keyPtr)
		}
		res, err := http.DefaultClient.Do(req)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				fmt.Println(res.Status)
				break
			}
			fmt.Println(res.Status)
		} else {
			fmt.Println(err)
		}
		totalWaitTime += 5
		fmt.Printf("Waiting %d seconds", totalWaitTime)
		fmt.Println()
		time.Sleep(5 * time.Second)
	}
}
