package adapter

import (
	"fmt"
	"strings"

	"github.com/kapu/pizzabot-go/internal/domain"
)

// Formatter renders every user-visible reply. Keeping all copy in one place
// makes the dialogue engine's transitions independent of wording.
type Formatter struct {
	productNoun string
}

func NewFormatter(productNoun string) *Formatter {
	return &Formatter{productNoun: productNoun}
}

func (f *Formatter) Greeting() string {
	return fmt.Sprintf(
		"Hi! I can take your %s order or answer a question.\n"+
			"Send /%s to see the menu, or just tell me what you want.",
		f.productNoun, f.productNoun)
}

// Menu renders the catalog as a numbered list followed by the type prompt.
func (f *Formatter) Menu(names []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Here is our %s menu:\n", f.productNoun))
	for i, name := range names {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, name))
	}
	sb.WriteString(fmt.Sprintf("\nWhich %s would you like?", f.productNoun))
	return sb.String()
}

func (f *Formatter) MenuRetry(names []string) string {
	return "Sorry, I don't see that on the menu.\n\n" + f.Menu(names)
}

func (f *Formatter) AskQuantity(itemType string) string {
	return fmt.Sprintf("Great choice, %s! How many would you like?", itemType)
}

func (f *Formatter) Confirmation(order *domain.Order) string {
	return fmt.Sprintf(
		"Your order is confirmed!\nProduct: %s\nType: %s\nQuantity: %d\n\nThank you!",
		order.Product, order.ItemType, order.Quantity)
}

func (f *Formatter) Cancelled() string {
	return "Your order has been cancelled."
}

func (f *Formatter) Rephrase() string {
	return "Sorry, I couldn't understand that. Could you rephrase?"
}

func (f *Formatter) SinkFailure() string {
	return fmt.Sprintf(
		"Sorry, something went wrong saving your order. Please try again with /%s.",
		f.productNoun)
}

func (f *Formatter) NotInMenu(itemType string) string {
	return fmt.Sprintf(
		"Sorry, %s is not on our menu anymore. Please start over with /%s.",
		itemType, f.productNoun)
}

// SuggestOrderCommand is the reply when a message mentions the product but
// does not express a recognizable order intent.
func (f *Formatter) SuggestOrderCommand() string {
	return fmt.Sprintf(
		"It sounds like you're talking about %s! Send /%s to place an order.",
		f.productNoun, f.productNoun)
}

// OrderHistory renders past orders, newest first.
func (f *Formatter) OrderHistory(orders []domain.Order) string {
	if len(orders) == 0 {
		return fmt.Sprintf("No orders yet. Send /%s to place one.", f.productNoun)
	}
	var sb strings.Builder
	sb.WriteString("Your recent orders:\n")
	for i, o := range orders {
		sb.WriteString(fmt.Sprintf("%d. %s x%d\n", i+1, o.ItemType, o.Quantity))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) LookupAnswer(summary string) string {
	return summary
}

func (f *Formatter) LookupFailure(phrase string) string {
	if phrase == "" {
		return "I couldn't find anything to look up in that message."
	}
	return fmt.Sprintf("I couldn't find anything about \"%s\".", phrase)
}

func (f *Formatter) LookupUnavailable() string {
	return "Sorry, I can't look things up right now. Please try again in a bit."
}

func (f *Formatter) PhotoReply(labels []string, summary string) string {
	if len(labels) == 0 {
		return "I couldn't tell what's in that photo."
	}
	reply := fmt.Sprintf("Looks like %s.", strings.Join(labels, ", "))
	if summary != "" {
		reply += "\n\n" + summary
	}
	return reply
}

func (f *Formatter) PhotoDuringOrder() string {
	return fmt.Sprintf(
		"Let's finish your %s order first! Send /cancel if you'd rather stop.",
		f.productNoun)
}

func (f *Formatter) PhotoFailure() string {
	return "Sorry, I couldn't analyze that photo."
}

func (f *Formatter) UnknownCommand(command string) string {
	return fmt.Sprintf("Unknown command: /%s", command)
}
