package db

const (
	insertOrder = `
		INSERT INTO orders (id, restaurant_id, customer_id, guest_name, guest_phone, guest_email,
			items_json, total_price, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	getOrderByID = `
		SELECT id, restaurant_id, customer_id, guest_name, guest_phone, guest_email,
			items_json, total_price, status, notes, estimated_ready_time, cancellation_reason,
			created_at, updated_at
		FROM orders WHERE id = ?
	`

	listOrdersByRestaurant = `
		SELECT id, restaurant_id, customer_id, guest_name, guest_phone, guest_email,
			items_json, total_price, status, notes, estimated_ready_time, cancellation_reason,
			created_at, updated_at
		FROM orders WHERE restaurant_id = ? ORDER BY created_at DESC
	`

	updateOrderStatusCAS = `
		UPDATE orders SET status = ?, estimated_ready_time = COALESCE(?, estimated_ready_time),
			cancellation_reason = CASE WHEN ? != '' THEN ? ELSE cancellation_reason END,
			updated_at = ?
		WHERE id = ? AND status = ?
	`
)

const (
	insertPrinter = `
		INSERT INTO printers (id, restaurant_id, name, type, connection_type, ip_address, port,
			usb_device, auto_print_orders, enabled, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	getPrinterByID = `
		SELECT id, restaurant_id, name, type, connection_type, ip_address, port, usb_device,
			auto_print_orders, enabled, status, last_seen_at, created_at, updated_at
		FROM printers WHERE id = ?
	`

	listPrintersByRestaurant = `
		SELECT id, restaurant_id, name, type, connection_type, ip_address, port, usb_device,
			auto_print_orders, enabled, status, last_seen_at, created_at, updated_at
		FROM printers WHERE restaurant_id = ? ORDER BY name ASC
	`

	listEnabledPrintersByRestaurant = `
		SELECT id, restaurant_id, name, type, connection_type, ip_address, port, usb_device,
			auto_print_orders, enabled, status, last_seen_at, created_at, updated_at
		FROM printers WHERE restaurant_id = ? AND enabled = 1 ORDER BY name ASC
	`

	listAllEnabledPrinters = `
		SELECT id, restaurant_id, name, type, connection_type, ip_address, port, usb_device,
			auto_print_orders, enabled, status, last_seen_at, created_at, updated_at
		FROM printers WHERE enabled = 1 ORDER BY restaurant_id, name ASC
	`

	updatePrinter = `
		UPDATE printers SET name = ?, type = ?, connection_type = ?, ip_address = ?, port = ?,
			usb_device = ?, auto_print_orders = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`

	updatePrinterStatus = `
		UPDATE printers SET status = ?, last_seen_at = ? WHERE id = ?
	`

	deletePrinter = `DELETE FROM printers WHERE id = ?`
)

const (
	insertJob = `
		INSERT INTO print_jobs (id, order_id, printer_id, restaurant_id, print_type, status,
			attempts, max_attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	getJobByID = `
		SELECT id, order_id, printer_id, restaurant_id, print_type, status, attempts, max_attempts,
			error_message, not_before, created_at, started_at, completed_at, failed_at
		FROM print_jobs WHERE id = ?
	`

	nextQueuedJob = `
		SELECT id, order_id, printer_id, restaurant_id, print_type, status, attempts, max_attempts,
			error_message, not_before, created_at, started_at, completed_at, failed_at
		FROM print_jobs
		WHERE printer_id = ? AND status = 'queued' AND (not_before IS NULL OR not_before <= ?)
		ORDER BY created_at ASC LIMIT 1
	`

	listJobsByRestaurant = `
		SELECT id, order_id, printer_id, restaurant_id, print_type, status, attempts, max_attempts,
			error_message, not_before, created_at, started_at, completed_at, failed_at
		FROM print_jobs WHERE restaurant_id = ? ORDER BY created_at DESC
	`

	stalePrintingJobs = `
		SELECT id, order_id, printer_id, restaurant_id, print_type, status, attempts, max_attempts,
			error_message, not_before, created_at, started_at, completed_at, failed_at
		FROM print_jobs WHERE status = 'printing' AND started_at < ?
	`

	setJobPrinting = `
		UPDATE print_jobs SET status = 'printing', started_at = ? WHERE id = ? AND status = 'queued'
	`

	setJobCompleted = `
		UPDATE print_jobs SET status = 'completed', completed_at = ? WHERE id = ? AND status = 'printing'
	`

	setJobRequeued = `
		UPDATE print_jobs SET status = 'queued', attempts = ?, error_message = '', not_before = ?
		WHERE id = ? AND status = 'printing'
	`

	setJobFailed = `
		UPDATE print_jobs SET status = 'failed', attempts = ?, error_message = ?, failed_at = ?
		WHERE id = ? AND status = 'printing'
	`

	setJobRetried = `
		UPDATE print_jobs SET status = 'queued', error_message = '', not_before = NULL, failed_at = NULL
		WHERE id = ? AND status = 'failed'
	`

	setJobCancelled = `
		UPDATE print_jobs SET status = 'cancelled' WHERE id = ? AND status = 'queued'
	`

	failQueuedJobsForPrinter = `
		UPDATE print_jobs SET status = 'failed', error_message = ?, failed_at = ?
		WHERE printer_id = ? AND status = 'queued'
	`
)

const (
	insertUser = `
		INSERT INTO users (id, email, password_hash, role, restaurant_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	getUserByEmail = `
		SELECT id, email, password_hash, role, restaurant_id, created_at
		FROM users WHERE email = ?
	`

	getUserByID = `
		SELECT id, email, password_hash, role, restaurant_id, created_at
		FROM users WHERE id = ?
	`

	updateUserPassword = `UPDATE users SET password_hash = ? WHERE id = ?`
)
