/*
Package menuflow is a scripted, branching conversation engine for chat bots.

A flow is a graph of nodes: messages that are sent and followed immediately,
inputs that wait for the user's next message and store it in a variable,
switches that branch on a rendered expression, and HTTP requests that call an
external service and branch on the response status. Every inbound message
advances the sender's position through the graph until the engine reaches a
node that waits for input or has nowhere left to go.

Positions and variables are persisted per user after every step, so a
conversation survives restarts. Steps of the same user are serialized; steps
of different users run concurrently.

# Usage

	loader := file.NewLoader("flow.yaml")
	bot, err := menuflow.New(ctx, loader,
		menuflow.WithStore(memory.NewStore()),
		menuflow.WithSelfID("@bot:example.org"),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := bot.Handle(ctx, domain.Inbound{
		UserID: "@alice:example.org",
		RoomID: "!room:example.org",
		Body:   "hi",
	}, messenger)

# Flow definition

Flows are YAML or JSON documents:

	id: greeting
	nodes:
	  - id: ask
	    type: input
	    text: "What's your name?"
	    variable: name
	    o_connection: hello
	  - id: hello
	    type: message
	    text: "Hello {{ name }}!"

Text is rendered with "{{ expression }}" segments evaluated against the
user's variables. Switch nodes compare their rendered validation to case ids
and fall back to the "default" case.
*/
package menuflow
