package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akhenakh/cayenne"
	"github.com/brocaar/chirpstack-api/go/v3/common"
	gwpb "github.com/brocaar/chirpstack-api/go/v3/gw"
	"github.com/brocaar/lorawan"
	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/empty"
	"github.com/google/uuid"
	_ "github.com/mbobakov/grpc-consul-resolver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/balancer/roundrobin"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/akhenakh/concentratord/gatewaysvc"
)

var (
	concentratordURI = flag.String("concentratordURI", "localhost:9200", "concentratord grpc URI")

	downlink  = flag.String("downlink", "", "hex PHYPayload to send, if empty stream uplinks")
	uplinkCtx = flag.String("context", "", "hex context of the uplink to answer, if empty send immediately")
	delay     = flag.Duration("delay", time.Second, "delay after the uplink")
	frequency = flag.Uint("frequency", 869525000, "downlink frequency in Hz")
	sf        = flag.Uint("sf", 9, "downlink spreading factor")
	power     = flag.Int("power", 14, "downlink power in dBm")
)

func main() {
	flag.Parse()

	conn, err := grpc.Dial(*concentratordURI,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"`+roundrobin.Name+`"}`),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	c := gatewaysvc.NewGatewayClient(conn)

	if *downlink != "" {
		if err := sendDownlink(c); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stream, err := c.StreamUplinks(ctx, &empty.Empty{})
	if err != nil {
		log.Fatal(err)
	}

	m := &jsonpb.Marshaler{OrigName: true}
	for {
		frame, err := stream.Recv()
		if err == io.EOF || ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Fatal(err)
		}

		s, err := m.MarshalToString(frame)
		if err != nil {
			log.Fatal(err)
		}
		log.Println(s)
		log.Println("context", hex.EncodeToString(frame.GetRxInfo().GetContext()))

		if values := decodeCayenne(frame.PhyPayload); values != nil {
			log.Println(values)
		}
	}
}

func sendDownlink(c gatewaysvc.GatewayClient) error {
	phy, err := hex.DecodeString(*downlink)
	if err != nil {
		return err
	}

	txInfo := &gwpb.DownlinkTXInfo{
		Frequency:  uint32(*frequency),
		Power:      int32(*power),
		Modulation: common.Modulation_LORA,
		ModulationInfo: &gwpb.DownlinkTXInfo_LoraModulationInfo{
			LoraModulationInfo: &gwpb.LoRaModulationInfo{
				Bandwidth:             125,
				SpreadingFactor:       uint32(*sf),
				CodeRate:              "4/5",
				PolarizationInversion: true,
			},
		},
		Timing: gwpb.DownlinkTiming_IMMEDIATELY,
		TimingInfo: &gwpb.DownlinkTXInfo_ImmediatelyTimingInfo{
			ImmediatelyTimingInfo: &gwpb.ImmediatelyTimingInfo{},
		},
	}

	if *uplinkCtx != "" {
		txInfo.Context, err = hex.DecodeString(*uplinkCtx)
		if err != nil {
			return err
		}
		txInfo.Timing = gwpb.DownlinkTiming_DELAY
		txInfo.TimingInfo = &gwpb.DownlinkTXInfo_DelayTimingInfo{
			DelayTimingInfo: &gwpb.DelayTimingInfo{Delay: ptypes.DurationProto(*delay)},
		}
	}

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ack, err := c.SendDownlink(ctx, &gwpb.DownlinkFrame{
		DownlinkId: id[:],
		Items: []*gwpb.DownlinkFrameItem{{
			PhyPayload: phy,
			TxInfo:     txInfo,
		}},
	})
	if err != nil {
		return err
	}

	log.Println("downlink", id, "status", ack.GetItems()[0].GetStatus(), ack.GetError())
	return nil
}

// decodeCayenne returns the Cayenne LPP values of a data frame, nil when the
// frame is not a data frame or its payload is not LPP.
func decodeCayenne(b []byte) map[string]interface{} {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(b); err != nil {
		return nil
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok || len(mac.FRMPayload) == 0 {
		return nil
	}
	data, ok := mac.FRMPayload[0].(*lorawan.DataPayload)
	if !ok {
		return nil
	}

	msg, err := cayenne.NewDecoder(bytes.NewBuffer(data.Bytes)).DecodeUplink()
	if err != nil {
		return nil
	}

	values := make(map[string]interface{})
	for k, v := range msg.Values() {
		values[k] = v
	}
	values["dev_addr"] = mac.FHDR.DevAddr.String()
	return values
}
