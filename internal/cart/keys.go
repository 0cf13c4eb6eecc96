package cart

// Key layout shared with every deployment that reads the same store.
const (
	// RegistryKey is the set of every cart identifier ever created
	RegistryKey = "carts"

	cartPrefix = "cart:"

	fieldID       = "id"
	fieldTitle    = "title"
	fieldImage    = "image"
	fieldPrice    = "price"
	fieldQuantity = "quantity"

	paidFlag   = "1"
	unpaidFlag = "0"
)

// CartKey derives the cart identifier for a user: cart:<userID>
func CartKey(userID string) string {
	return cartPrefix + userID
}

// ProductsKey is the membership set of a cart: <cartID>:products
func ProductsKey(cartID string) string {
	return cartID + ":products"
}

// PaidKey holds "0" or "1": <cartID>:isPaid
func PaidKey(cartID string) string {
	return cartID + ":isPaid"
}

// LineKey is the line entry hash: <cartID>:product:<productID>
func LineKey(cartID, productID string) string {
	return cartID + ":product:" + productID
}
