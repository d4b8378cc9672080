package menuflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/menuflow"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/dsl"
	"github.com/aretw0/menuflow/pkg/ports"
)

// ExampleNew_dsl builds a flow in Go and talks to it with the in-memory store.
func ExampleNew_dsl() {
	b := dsl.New("greeter")
	b.Add("ask").
		Ask("What is your name?", "name").
		Go("greet")
	b.Add("greet").
		Message("Hello, {{ name }}!")

	loader, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	bot, err := menuflow.New(ctx, loader)
	if err != nil {
		log.Fatal(err)
	}

	out := ports.MessengerFunc(func(_ context.Context, roomID, text string) error {
		fmt.Printf("[%s] %s\n", roomID, text)
		return nil
	})

	// The first message starts the flow; the second one is captured as input.
	for _, body := range []string{"hi", "Ana"} {
		res, err := bot.Handle(ctx, domain.Inbound{UserID: "@ana:example.org", RoomID: "!lobby", Body: body}, out)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("now at", res.NodeID)
	}

	// Output:
	// [!lobby] What is your name?
	// now at ask
	// [!lobby] Hello, Ana!
	// now at greet
}
