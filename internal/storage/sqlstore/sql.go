package sqlstore

// Queries use '?' placeholders, which both MySQL and SQLite accept.

const insertCustomerSQL = `INSERT INTO customers (name) VALUES (?)`
const updateCustomerSQL = `UPDATE customers SET name = ? WHERE id = ?`
const deleteCustomerSQL = `DELETE FROM customers WHERE id = ?`
const selectCustomerSQL = `SELECT id, name FROM customers WHERE id = ?`
const pageCustomerIDsSQL = `SELECT id FROM customers WHERE id > ? ORDER BY id LIMIT ?`

const insertItemSQL = `INSERT INTO items (name, price) VALUES (?, ?)`
const updateItemSQL = `UPDATE items SET name = ?, price = ? WHERE id = ?`
const deleteItemSQL = `DELETE FROM items WHERE id = ?`
const selectItemSQL = `SELECT id, name, price FROM items WHERE id = ?`
const pageItemIDsSQL = `SELECT id FROM items WHERE id > ? ORDER BY id LIMIT ?`

const insertReviewSQL = `INSERT INTO reviews (comment, customer_id, item_id) VALUES (?, ?, ?)`
const updateReviewSQL = `UPDATE reviews SET comment = ?, customer_id = ?, item_id = ? WHERE id = ?`
const deleteReviewSQL = `DELETE FROM reviews WHERE id = ?`
const selectReviewSQL = `SELECT id, comment, customer_id, item_id FROM reviews WHERE id = ?`
const pageReviewIDsSQL = `SELECT id FROM reviews WHERE id > ? ORDER BY id LIMIT ?`

// -----------------------------------------------------------------------------
// GRAPH LOADING: %s is replaced by an IN (...) placeholder list.
// -----------------------------------------------------------------------------

const customersByIDsSQL = `SELECT id, name FROM customers WHERE id IN (%s) ORDER BY id`
const itemsByIDsSQL = `SELECT id, name, price FROM items WHERE id IN (%s) ORDER BY id`
const reviewsByIDsSQL = `SELECT id, comment, customer_id, item_id FROM reviews WHERE id IN (%s) ORDER BY id`
const reviewsByCustomersSQL = `SELECT id, comment, customer_id, item_id FROM reviews WHERE customer_id IN (%s) ORDER BY id`
const reviewsByItemsSQL = `SELECT id, comment, customer_id, item_id FROM reviews WHERE item_id IN (%s) ORDER BY id`
