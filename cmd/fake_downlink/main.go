package main

import (
	"bytes"
	"flag"
	"io"
	"log"
	"net/http"
	"time"
)

var raw = `{
	"token": 1234,
	"items": [{
		"phy_payload": "YNobASYAAAABoRn9",
		"tx_info": {
			"frequency": 869525000,
			"power": 14,
			"modulation": "LORA",
			"lora_modulation_info": {
				"bandwidth": 125,
				"spreading_factor": 9,
				"code_rate": "4/5",
				"polarization_inversion": true
			},
			"timing": "IMMEDIATELY",
			"immediately_timing_info": {}
		}
	}]
}`

var (
	addr = flag.String("addr", "http://localhost:9201", "concentratord HTTP API to send the downlink to")
)

func main() {
	flag.Parse()

	c := &http.Client{Timeout: 5 * time.Second}
	resp, err := c.Post(*addr+"/api/downlink", "application/json", bytes.NewBufferString(raw))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatal(err)
	}

	log.Println(resp.Status, string(ack))
}
